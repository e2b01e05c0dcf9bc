package engine

import (
	"encoding/json"
	"fmt"
)

// ClueTimeoutMs is the buzz window. A buzz at or above it is not a real buzz;
// a buzz strictly above it means the window has closed for the whole room.
const ClueTimeoutMs = 5000

// CantBuzz marks a player as ineligible for the active clue in State.Buzzes.
const CantBuzz = -1

// ---------------------------------------------------------------------------
// Phase
// ---------------------------------------------------------------------------

// Phase is the current step of the game state machine.
type Phase uint8

const (
	PhaseLobby Phase = iota
	PhaseWaitForClueChoice
	PhaseReadClue
	PhaseWagerClue
	PhaseReadLongFormClue
	PhaseRevealAnswerToBuzzer
	PhaseRevealAnswerLongForm
	PhaseRevealAnswerToAll
	PhaseRoundEnd
	PhaseGameOver
)

var phaseNames = [...]string{
	PhaseLobby:                "lobby",
	PhaseWaitForClueChoice:    "wait_for_clue_choice",
	PhaseReadClue:             "read_clue",
	PhaseWagerClue:            "wager_clue",
	PhaseReadLongFormClue:     "read_long_form_clue",
	PhaseRevealAnswerToBuzzer: "reveal_answer_to_buzzer",
	PhaseRevealAnswerLongForm: "reveal_answer_long_form",
	PhaseRevealAnswerToAll:    "reveal_answer_to_all",
	PhaseRoundEnd:             "round_end",
	PhaseGameOver:             "game_over",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// ClueOpen reports whether a clue is in progress, i.e. ActiveClue is set.
func (p Phase) ClueOpen() bool {
	switch p {
	case PhaseReadClue, PhaseWagerClue, PhaseReadLongFormClue,
		PhaseRevealAnswerToBuzzer, PhaseRevealAnswerLongForm, PhaseRevealAnswerToAll:
		return true
	case PhaseLobby, PhaseWaitForClueChoice, PhaseRoundEnd, PhaseGameOver:
		return false
	}
	return false
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// ---------------------------------------------------------------------------
// Coordinates and board bookkeeping
// ---------------------------------------------------------------------------

// Coord addresses a clue: I is the value tier, J the category.
type Coord struct {
	I int
	J int
}

// MarshalJSON encodes a coordinate as a two-element array.
func (c Coord) MarshalJSON() ([]byte, error) { return json.Marshal([2]int{c.I, c.J}) }

func (c *Coord) UnmarshalJSON(b []byte) error {
	var ij [2]int
	if err := json.Unmarshal(b, &ij); err != nil {
		return err
	}
	c.I, c.J = ij[0], ij[1]
	return nil
}

// AnsweredCell records whether a clue is done and who got it right, if anyone.
type AnsweredCell struct {
	IsAnswered bool   `json:"isAnswered"`
	AnsweredBy string `json:"answeredBy,omitempty"`
}

func newAnsweredGrid(b *Board) [][]AnsweredCell {
	grid := make([][]AnsweredCell, b.Rows())
	for i := range grid {
		grid[i] = make([]AnsweredCell, b.Cols())
	}
	return grid
}

// ---------------------------------------------------------------------------
// Players
// ---------------------------------------------------------------------------

// Player is a contestant in a room.
type Player struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
}

// Players is an insertion-ordered set of players keyed by user ID. It is
// copy-on-write: methods never modify the receiver's backing storage.
type Players struct {
	list  []Player
	index map[string]int
}

// Len returns the number of players.
func (p Players) Len() int { return len(p.list) }

// Get returns the player with the given user ID.
func (p Players) Get(userID string) (Player, bool) {
	i, ok := p.index[userID]
	if !ok {
		return Player{}, false
	}
	return p.list[i], true
}

// Has reports whether userID has joined.
func (p Players) Has(userID string) bool {
	_, ok := p.index[userID]
	return ok
}

// Ordered returns a copy of the players in join order.
func (p Players) Ordered() []Player {
	out := make([]Player, len(p.list))
	copy(out, p.list)
	return out
}

// IDs returns user IDs in join order.
func (p Players) IDs() []string {
	ids := make([]string, len(p.list))
	for i, pl := range p.list {
		ids[i] = pl.UserID
	}
	return ids
}

// with returns a new set with pl added, or replaced in place if already present.
func (p Players) with(pl Player) Players {
	list := make([]Player, len(p.list), len(p.list)+1)
	copy(list, p.list)
	index := make(map[string]int, len(p.list)+1)
	for k, v := range p.index {
		index[k] = v
	}
	if i, ok := index[pl.UserID]; ok {
		list[i] = pl
	} else {
		index[pl.UserID] = len(list)
		list = append(list, pl)
	}
	return Players{list: list, index: index}
}

// addScore returns a new set with delta applied to userID's score.
func (p Players) addScore(userID string, delta int) Players {
	pl, ok := p.Get(userID)
	if !ok {
		return p
	}
	pl.Score += delta
	return p.with(pl)
}

func (p Players) MarshalJSON() ([]byte, error) {
	if p.list == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.list)
}

func (p *Players) UnmarshalJSON(b []byte) error {
	var list []Player
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*p = Players{}
	for _, pl := range list {
		*p = p.with(pl)
	}
	return nil
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

// State is an immutable snapshot of a game in progress. Apply never modifies a
// State; every legal action yields a new one.
type State struct {
	Game *Game `json:"-"`

	Phase         Phase             `json:"type"`
	Round         int               `json:"round"`
	BoardControl  string            `json:"boardControl,omitempty"`
	ActiveClue    *Coord            `json:"activeClue,omitempty"`
	IsAnswered    [][]AnsweredCell  `json:"isAnswered"`
	NumAnswered   int               `json:"numAnswered"`
	Buzzes        map[string]int    `json:"buzzes"`
	Wagers        map[string]int    `json:"wagers"`
	Answers       map[string]string `json:"answers"`
	Checks        map[string]bool   `json:"checks"`
	WinningBuzzer string            `json:"winningBuzzer,omitempty"`
	Players       Players           `json:"players"`
}

// NewState builds the lobby state for g. The definition is validated here;
// an invalid one is a programmer or content error, not a game event.
func NewState(g *Game) (*State, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &State{
		Game:       g,
		Phase:      PhaseLobby,
		IsAnswered: newAnsweredGrid(&g.Boards[0]),
		Buzzes:     map[string]int{},
		Wagers:     map[string]int{},
		Answers:    map[string]string{},
		Checks:     map[string]bool{},
	}, nil
}

// clone returns a copy of s that shares nothing mutable with it except Game
// and the copy-on-write Players.
func (s *State) clone() *State {
	next := *s
	if s.ActiveClue != nil {
		c := *s.ActiveClue
		next.ActiveClue = &c
	}
	next.IsAnswered = make([][]AnsweredCell, len(s.IsAnswered))
	for i, row := range s.IsAnswered {
		next.IsAnswered[i] = append([]AnsweredCell(nil), row...)
	}
	next.Buzzes = copyMap(s.Buzzes)
	next.Wagers = copyMap(s.Wagers)
	next.Answers = copyMap(s.Answers)
	next.Checks = copyMap(s.Checks)
	return &next
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// board returns the board of the current round.
func (s *State) board() *Board { return &s.Game.Boards[s.Round] }

// activeClue returns the clue under ActiveClue.
func (s *State) activeClue() (Clue, bool) {
	if s.ActiveClue == nil {
		return Clue{}, false
	}
	return ClueAt(s, *s.ActiveClue)
}
