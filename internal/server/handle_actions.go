package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/room"
)

const hostTokenHeader = "X-Host-Token"

type ActionResponse struct {
	Applied bool          `json:"applied"`
	Seq     int64         `json:"seq"`
	UserID  string        `json:"userId,omitempty"`
	State   *engine.State `json:"state"`
}

// errBadAction marks requests rejected before reaching the engine.
var errBadAction = errors.New("bad action")

// prepareAction decodes env and applies transport rules: join assigns a user
// ID when the client has none, and round control is reserved for the host.
// It returns the action and the acting user's ID, if any.
func prepareAction(ctx context.Context, rm *room.Room, env engine.Envelope, hostToken string) (engine.Action, string, error) {
	a, err := env.Decode()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errBadAction, err)
	}

	switch v := a.(type) {
	case engine.Join:
		v.Name = strings.TrimSpace(v.Name)
		if v.Name == "" {
			return nil, "", fmt.Errorf("%w: name is required", errBadAction)
		}
		if v.UserID == "" {
			v.UserID = uuid.NewString()
		}
		return v, v.UserID, nil
	case engine.ChangeName:
		v.Name = strings.TrimSpace(v.Name)
		if v.Name == "" {
			return nil, "", fmt.Errorf("%w: name is required", errBadAction)
		}
		return v, v.UserID, nil
	case engine.StartRound, engine.NextClue:
		if err := rm.CheckHost(ctx, hostToken); err != nil {
			return nil, "", err
		}
		return a, "", nil
	}
	return a, "", nil
}

func handleAction(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm := roomFrom(r)

		var env engine.Envelope
		if err := readJSON(r, &env); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		a, userID, err := prepareAction(r.Context(), rm, env, r.Header.Get(hostTokenHeader))
		if err != nil {
			writeActionError(w, logger, err)
			return
		}

		res, err := rm.Dispatch(r.Context(), a)
		if err != nil {
			writeActionError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, ActionResponse{
			Applied: res.Applied,
			Seq:     res.Seq,
			UserID:  userID,
			State:   res.State,
		})
	}
}

func actionErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadAction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, room.ErrNotHost):
		return http.StatusForbidden, "host token required"
	case errors.Is(err, room.ErrNotOwner):
		return http.StatusMisdirectedRequest, "room is served by another instance"
	case errors.Is(err, room.ErrClosed):
		return http.StatusServiceUnavailable, "room closed, retry"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	}
	return http.StatusInternalServerError, "internal error"
}

func writeActionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg := actionErrorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("dispatching action", "error", err)
	}
	writeError(w, status, msg)
}
