package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/buzzboard/internal/database"
	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/migrations"
	"github.com/playperu/buzzboard/internal/room"
	"github.com/playperu/buzzboard/internal/store"
)

const testGame = `{
  "title": "Test Game",
  "boards": [{
    "categories": [
      {"name": "A", "clues": [{"clue": "q1", "answer": "a1"}, {"clue": "q2", "answer": "a2"}]},
      {"name": "B", "clues": [{"clue": "q3", "answer": "a3"}, {"clue": "q4", "answer": "a4"}]}
    ]
  }]
}`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return store.New(db)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := newStore(t)
	rooms := room.NewManager(st, room.NewBroker(), nil, discard, room.Options{})
	t.Cleanup(func() { rooms.Close() })

	return New(":0", discard, Deps{Store: st, Rooms: rooms, PublicBaseURL: "https://quiz.example"}, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// createRoom uploads testGame and opens a room for it.
func createRoom(t *testing.T, h http.Handler) CreateRoomResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/games", testGame, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	game := decode[CreateGameResponse](t, rec)
	assert.Equal(t, 1, game.Rounds)

	rec = do(t, h, http.MethodPost, "/api/rooms", `{"gameId":"`+game.ID+`","word":"Blue Moon"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateRoomResponse](t, rec)
}

func TestGames(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/api/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/games", testGame, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[CreateGameResponse](t, rec)

	rec = do(t, h, http.MethodGet, "/api/games", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]store.GameSummary](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Test Game", list[0].Title)

	rec = do(t, h, http.MethodGet, "/api/games/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	g := decode[engine.Game](t, rec)
	assert.Equal(t, 400, g.Boards[0].Categories[1].Clues[1].Value)

	rec = do(t, h, http.MethodGet, "/api/games/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateGameInvalid(t *testing.T) {
	h := newTestServer(t).Handler()

	for name, body := range map[string]string{
		"not json":      `{`,
		"no title":      `{"boards":[{"categories":[{"name":"A","clues":[{"clue":"q","answer":"a"}]}]}]}`,
		"ragged":        `{"title":"t","boards":[{"categories":[{"name":"A","clues":[{"clue":"q","answer":"a"}]},{"name":"B","clues":[]}]}]}`,
		"unknown field": `{"title":"t","extra":1,"boards":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/games", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestCreateRoom(t *testing.T) {
	h := newTestServer(t).Handler()
	rm := createRoom(t, h)

	assert.Regexp(t, `^\d+-blue-moon$`, rm.Room)
	assert.NotEmpty(t, rm.HostToken)
	assert.Equal(t, "https://quiz.example/rooms/"+rm.Room, rm.JoinURL)

	rec := do(t, h, http.MethodPost, "/api/rooms", `{"gameId":"missing"}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/rooms", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomNotFound(t *testing.T) {
	h := newTestServer(t).Handler()

	rec := do(t, h, http.MethodGet, "/api/rooms/999-nowhere/state", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActions(t *testing.T) {
	h := newTestServer(t).Handler()
	rm := createRoom(t, h)
	path := "/api/rooms/" + rm.Room + "/actions"

	// join assigns a user ID when the client has none
	rec := do(t, h, http.MethodPost, path, `{"type":"join","payload":{"name":"Ann"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	joined := decode[ActionResponse](t, rec)
	assert.True(t, joined.Applied)
	assert.Equal(t, int64(1), joined.Seq)
	require.NotEmpty(t, joined.UserID)
	require.Equal(t, 1, joined.State.Players.Len())

	rec = do(t, h, http.MethodPost, path, `{"type":"join","payload":{"name":"  "}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, path, `{"type":"start_round","payload":{"round":0}}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, path, `{"type":"start_round","payload":{"round":0}}`,
		http.Header{hostTokenHeader: {"wrong"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, path, `{"type":"start_round","payload":{"round":0}}`,
		http.Header{hostTokenHeader: {rm.HostToken}})
	require.Equal(t, http.StatusOK, rec.Code)
	started := decode[ActionResponse](t, rec)
	assert.True(t, started.Applied)
	assert.Equal(t, engine.PhaseWaitForClueChoice, started.State.Phase)

	// a player without board control cannot choose
	rec = do(t, h, http.MethodPost, path, `{"type":"choose_clue","payload":{"userId":"someone-else","i":0,"j":0}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ignored := decode[ActionResponse](t, rec)
	assert.False(t, ignored.Applied)
	assert.Equal(t, int64(2), ignored.Seq)

	rec = do(t, h, http.MethodPost, path, `{"type":"dance","payload":{}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/rooms/"+rm.Room+"/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		Room  string `json:"room"`
		Seq   int64  `json:"seq"`
		State struct {
			Type         string `json:"type"`
			BoardControl string `json:"boardControl"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, rm.Room, snap.Room)
	assert.Equal(t, int64(2), snap.Seq)
	assert.Equal(t, "wait_for_clue_choice", snap.State.Type)
	assert.Equal(t, joined.UserID, snap.State.BoardControl)
}

func TestQR(t *testing.T) {
	h := newTestServer(t).Handler()
	rm := createRoom(t, h)

	rec := do(t, h, http.MethodGet, "/api/rooms/"+rm.Room+"/qr.png", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
}

func TestEvents(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	rm := createRoom(t, srv.Handler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/rooms/"+rm.Room+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
				select {
				case events <- data:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var snap struct {
		Seq   int64           `json:"seq"`
		State json.RawMessage `json:"state"`
	}
	select {
	case data := <-events:
		require.NoError(t, json.Unmarshal([]byte(data), &snap))
		assert.Equal(t, int64(0), snap.Seq)
	case <-ctx.Done():
		t.Fatal("no initial snapshot")
	}

	rec := do(t, srv.Handler(), http.MethodPost, "/api/rooms/"+rm.Room+"/actions",
		`{"type":"join","payload":{"userId":"u1","name":"Ann"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case data := <-events:
		require.NoError(t, json.Unmarshal([]byte(data), &snap))
		assert.Equal(t, int64(1), snap.Seq)
		assert.Contains(t, string(snap.State), `"u1"`)
	case <-ctx.Done():
		t.Fatal("no snapshot after join")
	}
}

func TestWebSocket(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	rm := createRoom(t, srv.Handler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/rooms/" + rm.Room + "/ws?hostToken=" + rm.HostToken
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg wsMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "state", msg.Type)

	// next frame of the given type, skipping state pushes
	next := func(typ string) wsMessage {
		t.Helper()
		for {
			var m wsMessage
			require.NoError(t, wsjson.Read(ctx, conn, &m))
			if m.Type == typ || m.Type == "error" {
				return m
			}
		}
	}

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
		"type":    "join",
		"payload": map[string]string{"name": "Ann"},
	}))
	res := next("result")
	require.Equal(t, "result", res.Type, res.Error)
	assert.True(t, res.Applied)
	assert.Equal(t, int64(1), res.Seq)
	assert.NotEmpty(t, res.UserID)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
		"type":    "start_round",
		"payload": map[string]int{"round": 0},
	}))
	res = next("result")
	require.Equal(t, "result", res.Type, res.Error)
	assert.True(t, res.Applied)

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "nope"}))
	res = next("result")
	assert.Equal(t, "error", res.Type)
	assert.NotEmpty(t, res.Error)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	require.NoError(t, SeedDemo(ctx, discard, st))
	require.NoError(t, SeedDemo(ctx, discard, st))

	games, err := st.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "Demo Night", games[0].Title)
	assert.Equal(t, 3, games[0].Rounds)
}
