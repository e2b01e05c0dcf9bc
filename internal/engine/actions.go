package engine

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names an action type on the wire.
type Kind string

const (
	KindJoin       Kind = "join"
	KindChangeName Kind = "change_name"
	KindStartRound Kind = "start_round"
	KindChooseClue Kind = "choose_clue"
	KindWager      Kind = "wager"
	KindBuzz       Kind = "buzz"
	KindAnswer     Kind = "answer"
	KindCheck      Kind = "check"
	KindNextClue   Kind = "next_clue"
)

// Action is one player- or system-initiated event. The set is closed: only
// the types in this file implement it.
type Action interface {
	Kind() Kind
}

// Join adds a player. The first player to join gets board control.
type Join struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// ChangeName renames an existing player.
type ChangeName struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// StartRound begins the given round, or ends the game if it is past the last.
type StartRound struct {
	Round int `json:"round"`
}

// ChooseClue opens clue (I, J) of the current round.
type ChooseClue struct {
	UserID string `json:"userId"`
	I      int    `json:"i"`
	J      int    `json:"j"`
}

// Wager stakes Amount on the active wager or long-form clue.
type Wager struct {
	UserID string `json:"userId"`
	I      int    `json:"i"`
	J      int    `json:"j"`
	Amount int    `json:"amount"`
}

// Buzz records a player's reaction time to the active clue.
type Buzz struct {
	UserID  string `json:"userId"`
	I       int    `json:"i"`
	J       int    `json:"j"`
	DeltaMs int    `json:"deltaMs"`
}

// Answer submits a written response to a long-form clue.
type Answer struct {
	UserID string `json:"userId"`
	I      int    `json:"i"`
	J      int    `json:"j"`
	Answer string `json:"answer"`
}

// Check reports whether the player's response was correct.
type Check struct {
	UserID  string `json:"userId"`
	I       int    `json:"i"`
	J       int    `json:"j"`
	Correct bool   `json:"correct"`
}

// NextClue leaves a fully revealed clue.
type NextClue struct {
	UserID string `json:"userId,omitempty"`
	I      int    `json:"i"`
	J      int    `json:"j"`
}

func (Join) Kind() Kind       { return KindJoin }
func (ChangeName) Kind() Kind { return KindChangeName }
func (StartRound) Kind() Kind { return KindStartRound }
func (ChooseClue) Kind() Kind { return KindChooseClue }
func (Wager) Kind() Kind      { return KindWager }
func (Buzz) Kind() Kind       { return KindBuzz }
func (Answer) Kind() Kind     { return KindAnswer }
func (Check) Kind() Kind      { return KindCheck }
func (NextClue) Kind() Kind   { return KindNextClue }

// ---------------------------------------------------------------------------
// Wire codec
// ---------------------------------------------------------------------------

// ErrUnknownAction is returned by DecodeAction for an unrecognised type.
var ErrUnknownAction = errors.New("unknown action type")

// Envelope is the JSON form of an action: {"type": ..., "payload": {...}}.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeAction wraps a in an envelope.
func EncodeAction(a Action) (Envelope, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", a.Kind(), err)
	}
	return Envelope{Type: a.Kind(), Payload: payload}, nil
}

// Decode returns the typed action held by the envelope.
func (e Envelope) Decode() (Action, error) {
	var a Action
	switch e.Type {
	case KindJoin:
		a = &Join{}
	case KindChangeName:
		a = &ChangeName{}
	case KindStartRound:
		a = &StartRound{}
	case KindChooseClue:
		a = &ChooseClue{}
	case KindWager:
		a = &Wager{}
	case KindBuzz:
		a = &Buzz{}
	case KindAnswer:
		a = &Answer{}
	case KindCheck:
		a = &Check{}
	case KindNextClue:
		a = &NextClue{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Type)
	}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, a); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", e.Type, err)
		}
	}
	return deref(a), nil
}

// DecodeAction parses a JSON envelope.
func DecodeAction(data []byte) (Action, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding action envelope: %w", err)
	}
	return e.Decode()
}

// deref turns the pointer used for unmarshalling back into a value so that
// Apply only ever sees value actions.
func deref(a Action) Action {
	switch v := a.(type) {
	case *Join:
		return *v
	case *ChangeName:
		return *v
	case *StartRound:
		return *v
	case *ChooseClue:
		return *v
	case *Wager:
		return *v
	case *Buzz:
		return *v
	case *Answer:
		return *v
	case *Check:
		return *v
	case *NextClue:
		return *v
	}
	return a
}
