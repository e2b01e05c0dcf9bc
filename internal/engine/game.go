package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidGame is returned when a game definition cannot back a playable
// state (empty rounds, ragged grids, malformed long-form rounds).
var ErrInvalidGame = errors.New("invalid game definition")

// Clue is a single prompt on the board. Category and LongForm are filled in by
// Game.Clue from the enclosing category and round.
type Clue struct {
	Category  string `json:"category,omitempty"`
	Clue      string `json:"clue"`
	Answer    string `json:"answer"`
	Value     int    `json:"value"`
	Wagerable bool   `json:"wagerable,omitempty"`
	LongForm  bool   `json:"longForm,omitempty"`
}

// Category is one column of a board. Clues are ordered by value tier.
type Category struct {
	Name  string `json:"name"`
	Clues []Clue `json:"clues"`
}

// Board is the clue grid for a single round.
type Board struct {
	LongForm   bool       `json:"longForm,omitempty"`
	Categories []Category `json:"categories"`
}

// Rows returns the number of value tiers on the board.
func (b *Board) Rows() int {
	if len(b.Categories) == 0 {
		return 0
	}
	return len(b.Categories[0].Clues)
}

// Cols returns the number of categories on the board.
func (b *Board) Cols() int { return len(b.Categories) }

// NumClues returns the total cell count of the board.
func (b *Board) NumClues() int { return b.Rows() * b.Cols() }

// Game is the static, read-only definition of a game: one board per round.
type Game struct {
	ID     string  `json:"id,omitempty"`
	Title  string  `json:"title"`
	Author string  `json:"author,omitempty"`
	Boards []Board `json:"boards"`
}

// NumRounds returns the number of rounds in the game.
func (g *Game) NumRounds() int { return len(g.Boards) }

// Clue returns the clue at c in the given round. I indexes the value tier and
// J the category.
func (g *Game) Clue(round int, c Coord) (Clue, bool) {
	if round < 0 || round >= len(g.Boards) {
		return Clue{}, false
	}
	b := &g.Boards[round]
	if c.J < 0 || c.J >= len(b.Categories) {
		return Clue{}, false
	}
	cat := &b.Categories[c.J]
	if c.I < 0 || c.I >= len(cat.Clues) {
		return Clue{}, false
	}
	clue := cat.Clues[c.I]
	clue.Category = cat.Name
	clue.LongForm = b.LongForm
	return clue, true
}

// MaxValue returns the highest fixed clue value in the given round.
func (g *Game) MaxValue(round int) int {
	if round < 0 || round >= len(g.Boards) {
		return 0
	}
	highest := 0
	for _, cat := range g.Boards[round].Categories {
		for _, c := range cat.Clues {
			highest = max(highest, c.Value)
		}
	}
	return highest
}

// Validate checks that every board is a non-empty rectangular grid and that
// long-form boards hold exactly one clue.
func (g *Game) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil game", ErrInvalidGame)
	}
	if len(g.Boards) == 0 {
		return fmt.Errorf("%w: no rounds", ErrInvalidGame)
	}
	for r, b := range g.Boards {
		if len(b.Categories) == 0 {
			return fmt.Errorf("%w: round %d has no categories", ErrInvalidGame, r)
		}
		rows := len(b.Categories[0].Clues)
		if rows == 0 {
			return fmt.Errorf("%w: round %d category %q has no clues", ErrInvalidGame, r, b.Categories[0].Name)
		}
		for j, cat := range b.Categories {
			if len(cat.Clues) != rows {
				return fmt.Errorf("%w: round %d category %d has %d clues, want %d", ErrInvalidGame, r, j, len(cat.Clues), rows)
			}
			for i, c := range cat.Clues {
				if c.Value < 0 {
					return fmt.Errorf("%w: round %d clue (%d, %d) has negative value", ErrInvalidGame, r, i, j)
				}
			}
		}
		if b.LongForm && b.NumClues() != 1 {
			return fmt.Errorf("%w: long-form round %d must have exactly one clue, has %d", ErrInvalidGame, r, b.NumClues())
		}
	}
	return nil
}
