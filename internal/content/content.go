// Package content loads uploaded game documents into engine definitions.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/playperu/buzzboard/internal/engine"
)

// MaxDocumentBytes bounds an uploaded game document.
const MaxDocumentBytes = 1 << 20

// Document is the upload format. Values are optional; a missing value is
// filled in from the clue's tier and round.
type Document struct {
	Title  string     `json:"title"`
	Author string     `json:"author,omitempty"`
	Boards []boardDoc `json:"boards"`
}

type boardDoc struct {
	LongForm   bool          `json:"longForm,omitempty"`
	Categories []categoryDoc `json:"categories"`
}

type categoryDoc struct {
	Name  string    `json:"name"`
	Clues []clueDoc `json:"clues"`
}

type clueDoc struct {
	Clue      string `json:"clue"`
	Answer    string `json:"answer"`
	Value     *int   `json:"value,omitempty"`
	Wagerable bool   `json:"wagerable,omitempty"`
}

// DefaultValue is the board value of tier i in the given round when the
// document leaves it out: 200, 400, ... doubled every round.
func DefaultValue(round, i int) int {
	return (i + 1) * 200 * (round + 1)
}

// Parse decodes and validates a game document. Errors from validation wrap
// engine.ErrInvalidGame.
func Parse(data []byte) (*engine.Game, error) {
	if len(data) > MaxDocumentBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", engine.ErrInvalidGame, MaxDocumentBytes)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding game document: %w", err)
	}
	return doc.Game()
}

// Load reads and parses the game document at path.
func Load(path string) (*engine.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading game document: %w", err)
	}
	return Parse(data)
}

// Game converts the document to a validated engine definition.
func (d Document) Game() (*engine.Game, error) {
	g := &engine.Game{
		Title:  strings.TrimSpace(d.Title),
		Author: strings.TrimSpace(d.Author),
	}
	if g.Title == "" {
		return nil, fmt.Errorf("%w: title is required", engine.ErrInvalidGame)
	}

	for r, bd := range d.Boards {
		b := engine.Board{LongForm: bd.LongForm}
		for j, cd := range bd.Categories {
			cat := engine.Category{Name: strings.TrimSpace(cd.Name)}
			if cat.Name == "" {
				return nil, fmt.Errorf("%w: round %d category %d has no name", engine.ErrInvalidGame, r, j)
			}
			for i, c := range cd.Clues {
				clue := engine.Clue{
					Clue:      strings.TrimSpace(c.Clue),
					Answer:    strings.TrimSpace(c.Answer),
					Wagerable: c.Wagerable,
				}
				if clue.Clue == "" || clue.Answer == "" {
					return nil, fmt.Errorf("%w: round %d clue (%d, %d) needs both clue and answer text", engine.ErrInvalidGame, r, i, j)
				}
				switch {
				case c.Value != nil:
					clue.Value = *c.Value
				case !bd.LongForm:
					clue.Value = DefaultValue(r, i)
				}
				cat.Clues = append(cat.Clues, clue)
			}
			b.Categories = append(b.Categories, cat)
		}
		g.Boards = append(g.Boards, b)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// FromGame converts a stored definition back to the upload format.
func FromGame(g *engine.Game) Document {
	d := Document{Title: g.Title, Author: g.Author}
	for _, b := range g.Boards {
		bd := boardDoc{LongForm: b.LongForm}
		for _, cat := range b.Categories {
			cd := categoryDoc{Name: cat.Name}
			for _, c := range cat.Clues {
				v := c.Value
				cd.Clues = append(cd.Clues, clueDoc{
					Clue:      c.Clue,
					Answer:    c.Answer,
					Value:     &v,
					Wagerable: c.Wagerable,
				})
			}
			bd.Categories = append(bd.Categories, cd)
		}
		d.Boards = append(d.Boards, bd)
	}
	return d
}
