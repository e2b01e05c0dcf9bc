// Package store persists game definitions, rooms and each room's action log
// in SQLite.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"

	"github.com/playperu/buzzboard/internal/engine"
)

var ErrNotFound = errors.New("not found")

// GameSummary is a row of the game listing.
type GameSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Rounds    int    `json:"rounds"`
	CreatedAt string `json:"createdAt"`
}

// Room is a play session of one game. Name is "<id>-<word>".
type Room struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	GameID    string `json:"gameId"`
	CreatedAt string `json:"createdAt"`
}

// SQLiteStore implements persistence on a libSQL database.
type SQLiteStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Games
// ---------------------------------------------------------------------------

// CreateGame stores g under a new ID and returns it.
func (s *SQLiteStore) CreateGame(ctx context.Context, g *engine.Game) (string, error) {
	id := uuid.NewString()
	data, err := json.Marshal(g.Boards)
	if err != nil {
		return "", fmt.Errorf("encoding boards: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, title, author, rounds, data)
		VALUES (?, ?, ?, ?, ?)
	`, id, g.Title, g.Author, g.NumRounds(), string(data))
	if err != nil {
		return "", fmt.Errorf("inserting game: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListGames(ctx context.Context) ([]GameSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author, rounds, created_at
		FROM games
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []GameSummary{}
	for rows.Next() {
		var g GameSummary
		if err := rows.Scan(&g.ID, &g.Title, &g.Author, &g.Rounds, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *SQLiteStore) GetGame(ctx context.Context, id string) (*engine.Game, error) {
	g := &engine.Game{}
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, data FROM games WHERE id = ?
	`, id).Scan(&g.ID, &g.Title, &g.Author, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &g.Boards); err != nil {
		return nil, fmt.Errorf("decoding boards of game %s: %w", id, err)
	}
	return g, nil
}

// ---------------------------------------------------------------------------
// Rooms
// ---------------------------------------------------------------------------

var roomWords = []string{
	"apple", "banjo", "cactus", "dolphin", "ember", "falcon", "glacier",
	"harbor", "igloo", "jasmine", "kettle", "lantern", "meadow", "nectar",
	"orbit", "pepper", "quartz", "ripple", "saffron", "tundra", "umbra",
	"velvet", "walnut", "yonder", "zephyr",
}

// RandomWord picks a room word.
func RandomWord() string {
	return roomWords[mathrand.IntN(len(roomWords))]
}

// CreateRoom opens a room for gameID named after word. It returns the room
// and the plaintext host token; only its bcrypt hash is stored.
func (s *SQLiteStore) CreateRoom(ctx context.Context, gameID, word string) (Room, string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games WHERE id = ?`, gameID).Scan(&exists)
	if err != nil {
		return Room{}, "", err
	}
	if exists == 0 {
		return Room{}, "", ErrNotFound
	}

	token, err := newToken()
	if err != nil {
		return Room{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return Room{}, "", fmt.Errorf("hashing host token: %w", err)
	}

	word = slug.Make(word)
	if word == "" {
		word = RandomWord()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, "", err
	}
	defer tx.Rollback()

	r := Room{GameID: gameID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rooms (name, game_id, host_token_hash)
		VALUES (lower(hex(randomblob(8))), ?, ?)
		RETURNING id, created_at
	`, gameID, string(hash)).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return Room{}, "", fmt.Errorf("inserting room: %w", err)
	}
	r.Name = strconv.FormatInt(r.ID, 10) + "-" + word
	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET name = ? WHERE id = ?`, r.Name, r.ID); err != nil {
		return Room{}, "", fmt.Errorf("naming room: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Room{}, "", err
	}
	return r, token, nil
}

// GetRoom looks a room up by name. Only the numeric prefix is significant, so
// "12-meadow" and "12" name the same room.
func (s *SQLiteStore) GetRoom(ctx context.Context, name string) (Room, error) {
	idPart, _, _ := strings.Cut(name, "-")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return Room{}, ErrNotFound
	}
	r := Room{ID: id}
	err = s.db.QueryRowContext(ctx, `
		SELECT name, game_id, created_at FROM rooms WHERE id = ?
	`, id).Scan(&r.Name, &r.GameID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	return r, err
}

// CheckHostToken reports whether token is the host token of the room.
func (s *SQLiteStore) CheckHostToken(ctx context.Context, roomID int64, token string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT host_token_hash FROM rooms WHERE id = ?
	`, roomID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

// ---------------------------------------------------------------------------
// Action log
// ---------------------------------------------------------------------------

// AppendAction records a as entry seq of the room's log. Sequence numbers are
// assigned by the room's dispatcher and start at 1.
func (s *SQLiteStore) AppendAction(ctx context.Context, roomID, seq int64, a engine.Action) error {
	env, err := engine.EncodeAction(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO room_actions (room_id, seq, type, payload)
		VALUES (?, ?, ?, ?)
	`, roomID, seq, string(env.Type), string(env.Payload))
	if err != nil {
		return fmt.Errorf("appending action %d to room %d: %w", seq, roomID, err)
	}
	return nil
}

// Actions returns the room's log in sequence order.
func (s *SQLiteStore) Actions(ctx context.Context, roomID int64) ([]engine.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, payload FROM room_actions
		WHERE room_id = ?
		ORDER BY seq
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []engine.Action
	for rows.Next() {
		var seq int64
		var kind, payload string
		if err := rows.Scan(&seq, &kind, &payload); err != nil {
			return nil, err
		}
		a, err := engine.Envelope{Type: engine.Kind(kind), Payload: json.RawMessage(payload)}.Decode()
		if err != nil {
			return nil, fmt.Errorf("room %d action %d: %w", roomID, seq, err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
