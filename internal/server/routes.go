package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/buzzboard/internal/room"
)

// Deps are the collaborators the HTTP API is built on.
type Deps struct {
	Store Store
	Rooms *room.Manager
	// PublicBaseURL prefixes join links and QR codes. Empty derives it from
	// the request.
	PublicBaseURL string
}

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Buzzboard API", "/openapi.json", "/docs"))

	r.Route("/api/games", func(r chi.Router) {
		r.Get("/", handleListGames(deps.Store))
		r.Post("/", handleCreateGame(logger, deps.Store))
		r.Get("/{id}", handleGetGame(deps.Store))
	})

	r.Post("/api/rooms", handleCreateRoom(logger, deps.Store, deps.PublicBaseURL))

	// {room} is resolved by roomMiddleware.
	r.Route("/api/rooms/{room}", func(r chi.Router) {
		r.Use(roomMiddleware(deps.Rooms))
		r.Get("/state", handleRoomState())
		r.Post("/actions", handleAction(logger))
		r.Get("/events", handleEvents())
		r.Get("/ws", handleWS(logger))
		r.Get("/qr.png", handleQR(deps.PublicBaseURL))
	})
}
