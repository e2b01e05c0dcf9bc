package server

import (
	"context"

	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/store"
)

// Store is the persistence the HTTP layer uses directly. Room play goes
// through room.Manager instead.
type Store interface {
	CreateGame(ctx context.Context, g *engine.Game) (string, error)
	ListGames(ctx context.Context) ([]store.GameSummary, error)
	GetGame(ctx context.Context, id string) (*engine.Game, error)
	CreateRoom(ctx context.Context, gameID, word string) (store.Room, string, error)
}
