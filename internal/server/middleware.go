package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/buzzboard/internal/room"
	"github.com/playperu/buzzboard/internal/store"
)

type ctxKey int

const (
	ctxKeyRoom ctxKey = iota
)

// roomMiddleware resolves {room} to a live room, loading it if needed.
func roomMiddleware(rooms *room.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "room")
			if name == "" {
				writeError(w, http.StatusNotFound, "room not found")
				return
			}

			rm, err := rooms.Get(r.Context(), name)
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "room not found")
				return
			}
			if errors.Is(err, room.ErrClosed) {
				writeError(w, http.StatusServiceUnavailable, "server shutting down")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyRoom, rm)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roomFrom(r *http.Request) *room.Room {
	return r.Context().Value(ctxKeyRoom).(*room.Room)
}
