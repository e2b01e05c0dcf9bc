package server

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/playperu/buzzboard/internal/content"
)

//go:embed demo_game.json
var demoGame []byte

// SeedDemo uploads the bundled demo game if no games exist yet.
func SeedDemo(ctx context.Context, logger *slog.Logger, st Store) error {
	existing, err := st.ListGames(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	g, err := content.Parse(demoGame)
	if err != nil {
		return fmt.Errorf("parsing demo game: %w", err)
	}
	id, err := st.CreateGame(ctx, g)
	if err != nil {
		return err
	}

	logger.Info("demo game seeded", "game", id)
	return nil
}
