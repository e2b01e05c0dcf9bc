package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/buzzboard/internal/content"
	"github.com/playperu/buzzboard/internal/store"
)

type CreateGameResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Rounds int    `json:"rounds"`
}

func handleCreateGame(logger *slog.Logger, st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, content.MaxDocumentBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "game document too large")
			return
		}

		g, err := content.Parse(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		id, err := st.CreateGame(r.Context(), g)
		if err != nil {
			logger.Error("creating game", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, CreateGameResponse{ID: id, Title: g.Title, Rounds: g.NumRounds()})
	}
}

func handleListGames(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := st.ListGames(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, games)
	}
}

func handleGetGame(st Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := st.GetGame(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}
