package engine

import (
	"cmp"
	"slices"
)

// ClueValue returns what clue c is worth to userID: their own wager while a
// wagerable or long-form clue is active and they have wagered, otherwise the
// board value. Unknown coordinates are worth 0.
func ClueValue(s *State, c Coord, userID string) int {
	clue, ok := s.Game.Clue(s.Round, c)
	if !ok {
		return 0
	}
	if (clue.Wagerable || clue.LongForm) && s.ActiveClue != nil && *s.ActiveClue == c {
		if w, ok := s.Wagers[userID]; ok {
			return w
		}
	}
	return clue.Value
}

// MaxWager returns the largest wager userID may place on the active clue.
func MaxWager(s *State, userID string) int {
	clue, ok := s.activeClue()
	if !ok {
		return 0
	}
	p, ok := s.Players.Get(userID)
	if !ok {
		return 0
	}
	switch {
	case clue.LongForm:
		return max(p.Score, 0)
	case clue.Wagerable:
		return max(p.Score, s.Game.MaxValue(s.Round))
	}
	return 0
}

// CanBuzz reports whether userID may still buzz on the active clue.
func CanBuzz(s *State, userID string) bool {
	if s.Phase != PhaseReadClue && s.Phase != PhaseReadLongFormClue {
		return false
	}
	if !s.Players.Has(userID) {
		return false
	}
	_, buzzed := s.Buzzes[userID]
	return !buzzed
}

// NumCluesInRound returns the number of cells on the current round's board.
func NumCluesInRound(s *State) int {
	if s.Round < 0 || s.Round >= s.Game.NumRounds() {
		return 0
	}
	return s.board().NumClues()
}

// IsRoundOver reports whether every clue of the current round is answered.
func IsRoundOver(s *State) bool {
	if s.Phase == PhaseRoundEnd || s.Phase == PhaseGameOver {
		return true
	}
	return s.NumAnswered >= NumCluesInRound(s)
}

// ClueAt returns the clue at c in the current round.
func ClueAt(s *State, c Coord) (Clue, bool) {
	return s.Game.Clue(s.Round, c)
}

// Leaders returns the players ordered by score, highest first. Equal scores
// keep join order.
func Leaders(s *State) []Player {
	out := s.Players.Ordered()
	slices.SortStableFunc(out, func(a, b Player) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Replay folds actions over s in order.
func Replay(s *State, actions []Action) *State {
	for _, a := range actions {
		s = Apply(s, a)
	}
	return s
}
