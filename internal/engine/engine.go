// Package engine implements the buzzer quiz rules as a pure transition
// function over immutable game states.
//
// Apply is deterministic and never fails: an action that is not legal in the
// current state returns the input state unchanged (the same pointer). Timing
// is not enforced here; callers report elapsed times through Buzz actions and
// synthesize timeout buzzes themselves.
package engine

// Apply returns the state that results from applying a to s. Illegal or
// unknown actions return s itself.
func Apply(s *State, a Action) *State {
	if s == nil || s.Game == nil {
		return s
	}
	var next *State
	switch a := a.(type) {
	case Join:
		next = applyJoin(s, a)
	case ChangeName:
		next = applyChangeName(s, a)
	case StartRound:
		next = applyStartRound(s, a)
	case ChooseClue:
		next = applyChooseClue(s, a)
	case Wager:
		next = applyWager(s, a)
	case Buzz:
		next = applyBuzz(s, a)
	case Answer:
		next = applyAnswer(s, a)
	case Check:
		next = applyCheck(s, a)
	case NextClue:
		next = applyNextClue(s, a)
	}
	if next == nil {
		return s
	}
	return next
}

func applyJoin(s *State, a Join) *State {
	if a.UserID == "" || s.Players.Has(a.UserID) {
		return nil
	}
	next := s.clone()
	next.Players = next.Players.with(Player{UserID: a.UserID, Name: a.Name})
	if next.BoardControl == "" {
		next.BoardControl = a.UserID
	}
	if next.Phase.ClueOpen() {
		next.Buzzes[a.UserID] = CantBuzz
	}
	return next
}

func applyChangeName(s *State, a ChangeName) *State {
	p, ok := s.Players.Get(a.UserID)
	if !ok || p.Name == a.Name {
		return nil
	}
	next := s.clone()
	p.Name = a.Name
	next.Players = next.Players.with(p)
	return next
}

func applyStartRound(s *State, a StartRound) *State {
	switch s.Phase {
	case PhaseLobby:
		if a.Round != 0 {
			return nil
		}
	case PhaseRoundEnd:
		if a.Round != s.Round+1 {
			return nil
		}
	case PhaseWaitForClueChoice, PhaseReadClue, PhaseWagerClue, PhaseReadLongFormClue,
		PhaseRevealAnswerToBuzzer, PhaseRevealAnswerLongForm, PhaseRevealAnswerToAll, PhaseGameOver:
		return nil
	}

	next := s.clone()
	clearClue(next)
	if a.Round >= s.Game.NumRounds() {
		next.Phase = PhaseGameOver
		return next
	}
	next.Round = a.Round
	next.IsAnswered = newAnsweredGrid(next.board())
	next.NumAnswered = 0
	next.Phase = PhaseWaitForClueChoice
	if next.board().LongForm {
		openClue(next, Coord{})
	}
	return next
}

func applyChooseClue(s *State, a ChooseClue) *State {
	if s.Phase != PhaseWaitForClueChoice || a.UserID == "" || a.UserID != s.BoardControl {
		return nil
	}
	c := Coord{I: a.I, J: a.J}
	if _, ok := s.Game.Clue(s.Round, c); !ok || s.IsAnswered[c.I][c.J].IsAnswered {
		return nil
	}
	next := s.clone()
	openClue(next, c)
	return next
}

func applyWager(s *State, a Wager) *State {
	if s.Phase != PhaseWagerClue || !s.isActive(a.I, a.J) || !s.Players.Has(a.UserID) {
		return nil
	}
	if _, locked := s.Buzzes[a.UserID]; locked {
		return nil
	}
	if _, done := s.Wagers[a.UserID]; done {
		return nil
	}
	if a.Amount < 0 || a.Amount > MaxWager(s, a.UserID) {
		return nil
	}

	next := s.clone()
	next.Wagers[a.UserID] = a.Amount
	for _, id := range next.eligible() {
		if _, ok := next.Wagers[id]; !ok {
			return next
		}
	}
	clue, _ := next.activeClue()
	if clue.LongForm {
		next.Phase = PhaseReadLongFormClue
	} else {
		next.Phase = PhaseReadClue
	}
	return next
}

func applyBuzz(s *State, a Buzz) *State {
	if s.Phase != PhaseReadClue && s.Phase != PhaseReadLongFormClue {
		return nil
	}
	if !s.isActive(a.I, a.J) || !s.Players.Has(a.UserID) || a.DeltaMs < 0 {
		return nil
	}
	if _, ok := s.Buzzes[a.UserID]; ok {
		return nil
	}

	next := s.clone()
	next.Buzzes[a.UserID] = a.DeltaMs

	if next.Phase == PhaseReadLongFormClue {
		if next.allAccounted() {
			next.Phase = PhaseRevealAnswerLongForm
		}
		return next
	}

	clue, _ := next.activeClue()
	switch {
	case next.Players.Len() == 1, clue.Wagerable:
		awardBuzz(next, a.UserID)
	case a.DeltaMs > ClueTimeoutMs, next.allAccounted():
		resolveBuzzes(next)
	}
	return next
}

func applyAnswer(s *State, a Answer) *State {
	if s.Phase != PhaseReadLongFormClue || !s.isActive(a.I, a.J) || !s.Players.Has(a.UserID) {
		return nil
	}
	if _, ok := s.Buzzes[a.UserID]; ok {
		return nil
	}
	next := s.clone()
	next.Answers[a.UserID] = a.Answer
	next.Buzzes[a.UserID] = 0
	if next.allAccounted() {
		next.Phase = PhaseRevealAnswerLongForm
	}
	return next
}

func applyCheck(s *State, a Check) *State {
	if !s.isActive(a.I, a.J) {
		return nil
	}
	switch s.Phase {
	case PhaseRevealAnswerToBuzzer:
		if a.UserID == "" || a.UserID != s.WinningBuzzer {
			return nil
		}
		return checkBuzzer(s, a)
	case PhaseRevealAnswerLongForm:
		return checkLongForm(s, a)
	case PhaseLobby, PhaseWaitForClueChoice, PhaseReadClue, PhaseWagerClue, PhaseReadLongFormClue,
		PhaseRevealAnswerToAll, PhaseRoundEnd, PhaseGameOver:
	}
	return nil
}

func checkBuzzer(s *State, a Check) *State {
	c := *s.ActiveClue
	clue, _ := s.activeClue()
	value := ClueValue(s, c, a.UserID)

	next := s.clone()
	next.Checks[a.UserID] = a.Correct
	if a.Correct {
		next.Players = next.Players.addScore(a.UserID, value)
		next.BoardControl = a.UserID
		markAnswered(next, a.UserID)
		finishClue(next)
		return next
	}

	next.Players = next.Players.addScore(a.UserID, -value)
	if clue.Wagerable {
		resolveUnanswered(next)
		return next
	}

	// Everyone who has not been locked out may buzz again.
	buzzes := make(map[string]int, len(next.Buzzes))
	for id, d := range next.Buzzes {
		if d == CantBuzz {
			buzzes[id] = CantBuzz
		}
	}
	buzzes[a.UserID] = CantBuzz
	next.Buzzes = buzzes
	next.WinningBuzzer = ""
	if len(next.eligible()) == 0 {
		resolveUnanswered(next)
		return next
	}
	next.Phase = PhaseReadClue
	return next
}

func checkLongForm(s *State, a Check) *State {
	d, ok := s.Buzzes[a.UserID]
	if !ok || d == CantBuzz {
		return nil
	}
	if _, done := s.Checks[a.UserID]; done {
		return nil
	}
	wager := s.Wagers[a.UserID]

	next := s.clone()
	next.Checks[a.UserID] = a.Correct
	if a.Correct {
		next.Players = next.Players.addScore(a.UserID, wager)
	} else {
		next.Players = next.Players.addScore(a.UserID, -wager)
	}
	for _, id := range next.eligible() {
		if _, ok := next.Checks[id]; !ok {
			return next
		}
	}
	markAnswered(next, "")
	finishClue(next)
	return next
}

func applyNextClue(s *State, a NextClue) *State {
	if s.Phase != PhaseRevealAnswerToAll || !s.isActive(a.I, a.J) {
		return nil
	}
	next := s.clone()
	finishClue(next)
	return next
}

// ---------------------------------------------------------------------------
// Transitions shared by several actions. All of them mutate a fresh clone.
// ---------------------------------------------------------------------------

// openClue makes c the active clue and decides who may take part in it.
func openClue(next *State, c Coord) {
	clearClue(next)
	next.ActiveClue = &c
	clue, _ := next.Game.Clue(next.Round, c)

	switch {
	case clue.LongForm:
		for _, p := range next.Players.list {
			if p.Score <= 0 {
				next.Buzzes[p.UserID] = CantBuzz
			}
		}
		if len(next.eligible()) == 0 {
			resolveUnanswered(next)
			return
		}
		next.Phase = PhaseWagerClue
	case clue.Wagerable:
		for _, p := range next.Players.list {
			if p.UserID != next.BoardControl {
				next.Buzzes[p.UserID] = CantBuzz
			}
		}
		next.Phase = PhaseWagerClue
	default:
		next.Phase = PhaseReadClue
	}
}

// resolveBuzzes awards the clue to the fastest real buzz. Ties go to the
// player who joined first.
func resolveBuzzes(next *State) {
	winner, best := "", ClueTimeoutMs
	for _, id := range next.Players.IDs() {
		d, ok := next.Buzzes[id]
		if !ok || d == CantBuzz || d >= best {
			continue
		}
		winner, best = id, d
	}
	if winner == "" {
		resolveUnanswered(next)
		return
	}
	awardBuzz(next, winner)
}

func awardBuzz(next *State, userID string) {
	next.WinningBuzzer = userID
	next.Phase = PhaseRevealAnswerToBuzzer
}

// resolveUnanswered closes the active clue with nobody credited. The clue
// stays active so the answer can be shown to the room until NextClue.
func resolveUnanswered(next *State) {
	markAnswered(next, "")
	next.WinningBuzzer = ""
	next.Phase = PhaseRevealAnswerToAll
}

func markAnswered(next *State, by string) {
	c := next.ActiveClue
	cell := &next.IsAnswered[c.I][c.J]
	if cell.IsAnswered {
		return
	}
	cell.IsAnswered = true
	cell.AnsweredBy = by
	next.NumAnswered++
}

// finishClue leaves the active clue and returns to clue selection, or ends
// the round once every cell is answered.
func finishClue(next *State) {
	clearClue(next)
	if next.NumAnswered >= next.board().NumClues() {
		next.Phase = PhaseRoundEnd
	} else {
		next.Phase = PhaseWaitForClueChoice
	}
}

func clearClue(next *State) {
	next.ActiveClue = nil
	next.WinningBuzzer = ""
	next.Buzzes = map[string]int{}
	next.Wagers = map[string]int{}
	next.Answers = map[string]string{}
	next.Checks = map[string]bool{}
}

// ---------------------------------------------------------------------------
// Small state predicates
// ---------------------------------------------------------------------------

func (s *State) isActive(i, j int) bool {
	return s.ActiveClue != nil && s.ActiveClue.I == i && s.ActiveClue.J == j
}

// eligible returns, in join order, the players not marked CantBuzz.
func (s *State) eligible() []string {
	var ids []string
	for _, p := range s.Players.list {
		if s.Buzzes[p.UserID] != CantBuzz {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// allAccounted reports whether every player has buzzed, answered or been
// marked ineligible for the active clue.
func (s *State) allAccounted() bool {
	for _, p := range s.Players.list {
		if _, ok := s.Buzzes[p.UserID]; !ok {
			return false
		}
	}
	return true
}
