package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/room"
)

// wsMessage is every frame the server sends on a room socket.
type wsMessage struct {
	Type    string          `json:"type"`
	State   json.RawMessage `json:"state,omitempty"`
	Applied bool            `json:"applied,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const wsWriteTimeout = 5 * time.Second

// handleWS serves a bidirectional room connection: the client sends action
// envelopes, the server pushes a "state" frame for every snapshot and a
// "result" or "error" frame for every action it receives. The host token, if
// any, is passed as the hostToken query parameter.
func handleWS(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm := roomFrom(r)
		hostToken := r.URL.Query().Get("hostToken")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ch, err := rm.Subscribe()
		if err != nil {
			conn.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}
		defer rm.Unsubscribe(ch)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case data := <-ch:
					if err := writeWS(ctx, conn, wsMessage{Type: "state", State: data}); err != nil {
						logger.Debug("websocket write failed", "room", rm.Name(), "error", err)
						return
					}
				}
			}
		}()

		for {
			var env engine.Envelope
			if err := wsjson.Read(ctx, conn, &env); err != nil {
				logger.Debug("websocket read ended", "room", rm.Name(), "error", err)
				return
			}

			msg := wsMessage{Type: "result"}
			a, userID, err := prepareAction(ctx, rm, env, hostToken)
			if err == nil {
				var res room.Result
				res, err = rm.Dispatch(ctx, a)
				msg.Applied, msg.Seq, msg.UserID = res.Applied, res.Seq, userID
			}
			if err != nil {
				_, text := actionErrorStatus(err)
				msg = wsMessage{Type: "error", Error: text}
			}
			if err := writeWS(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func writeWS(ctx context.Context, conn *websocket.Conn, msg wsMessage) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
