package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/buzzboard/internal/content"
	"github.com/playperu/buzzboard/internal/database"
	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/migrations"
	"github.com/playperu/buzzboard/internal/store"
)

const doc = `{
  "title": "Tiny",
  "boards": [
    {"categories": [{"name": "A", "clues": [{"clue": "q", "answer": "a", "wagerable": true}, {"clue": "q2", "answer": "a2"}]}]},
    {"longForm": true, "categories": [{"name": "Final", "clues": [{"clue": "q", "answer": "a"}]}]}
  ]
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(doc), 0o600))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, `"Tiny", 2 round(s)`)
	assert.Contains(t, out, "round 0")
	assert.Contains(t, out, "1 wager(s)")
	assert.Contains(t, out, "long-form")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title":"x","boards":[]}`), 0o600))
	_, err = execute(t, "validate", good, bad)
	require.ErrorIs(t, err, engine.ErrInvalidGame)

	_, err = execute(t, "validate")
	require.Error(t, err)
}

func TestReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quiz.db")

	db, err := database.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))
	st := store.New(db)

	g, err := content.Parse([]byte(doc))
	require.NoError(t, err)
	gameID, err := st.CreateGame(ctx, g)
	require.NoError(t, err)
	rm, _, err := st.CreateRoom(ctx, gameID, "quiet")
	require.NoError(t, err)
	for i, a := range []engine.Action{
		engine.Join{UserID: "u1", Name: "Ann"},
		engine.StartRound{Round: 0},
	} {
		require.NoError(t, st.AppendAction(ctx, rm.ID, int64(i+1), a))
	}
	require.NoError(t, db.Close())

	out, err := execute(t, "--db", path, "replay", rm.Name)
	require.NoError(t, err)
	var s struct {
		Type    string `json:"type"`
		Players []struct {
			Name string `json:"name"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "wait_for_clue_choice", s.Type)
	require.Len(t, s.Players, 1)
	assert.Equal(t, "Ann", s.Players[0].Name)

	out, err = execute(t, "--db", path, "replay", "--seq", "1", rm.Name)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "lobby", s.Type)

	out, err = execute(t, "--db", path, "games")
	require.NoError(t, err)
	assert.Contains(t, out, "Tiny")

	// an exported game uploads again unchanged
	out, err = execute(t, "--db", path, "export", gameID)
	require.NoError(t, err)
	exported, err := content.Parse([]byte(out))
	require.NoError(t, err)
	exported.ID = g.ID
	assert.Equal(t, g, exported)

	_, err = execute(t, "--db", path, "replay", "999-missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quiz.db")

	out, err := execute(t, "--db", path, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema version 1 (latest 1)\n", out)
	assert.FileExists(t, path)
}
