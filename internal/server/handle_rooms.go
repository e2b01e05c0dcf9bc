package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/playperu/buzzboard/internal/store"
)

type CreateRoomRequest struct {
	GameID string `json:"gameId"`
	Word   string `json:"word,omitempty"`
}

type CreateRoomResponse struct {
	Room      string `json:"room"`
	HostToken string `json:"hostToken"`
	JoinURL   string `json:"joinUrl"`
}

func handleCreateRoom(logger *slog.Logger, st Store, baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.GameID == "" {
			writeError(w, http.StatusBadRequest, "gameId is required")
			return
		}
		if req.Word == "" {
			req.Word = store.RandomWord()
		}

		rm, token, err := st.CreateRoom(r.Context(), req.GameID, req.Word)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			logger.Error("creating room", "game", req.GameID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		logger.Info("room created", "room", rm.Name, "game", req.GameID)
		writeJSON(w, http.StatusCreated, CreateRoomResponse{
			Room:      rm.Name,
			HostToken: token,
			JoinURL:   joinURL(r, baseURL, rm.Name),
		})
	}
}

func handleRoomState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, roomFrom(r).Current())
	}
}

// handleQR renders the room's join URL as a PNG QR code.
func handleQR(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rm := roomFrom(r)

		const qrSize = 320
		png, err := qrcode.Encode(joinURL(r, baseURL, rm.Name()), qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	}
}

// joinURL is where players open a room. Without a configured base URL it is
// derived from the request, respecting X-Forwarded-Proto.
func joinURL(r *http.Request, baseURL, name string) string {
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		baseURL = scheme + "://" + r.Host
	}
	return strings.TrimSuffix(baseURL, "/") + "/rooms/" + name
}

