package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/buzzboard.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL enables cross-instance fan-out of room snapshots. Empty runs
	// a single instance.
	RedisURL string `env:"REDIS_URL"`

	// PublicBaseURL prefixes join links. Empty derives it from each request.
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	SeedDemo      bool   `env:"SEED_DEMO" envDefault:"true"`

	RoomIdleTimeout  time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"30m"`
	ReaperInterval   time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`
	ClueReadGrace    time.Duration `env:"CLUE_READ_GRACE" envDefault:"3s"`
	LongFormDuration time.Duration `env:"LONG_FORM_DURATION" envDefault:"60s"`

	// RoomLeaseTTL bounds how long a room stays owned by an instance that
	// stopped renewing it. Only used with Redis.
	RoomLeaseTTL time.Duration `env:"ROOM_LEASE_TTL" envDefault:"3m"`
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.ReaperInterval <= 0 {
		return nil, fmt.Errorf("REAPER_INTERVAL must be positive, got %s", cfg.ReaperInterval)
	}
	if cfg.RoomLeaseTTL <= cfg.ReaperInterval {
		return nil, fmt.Errorf("ROOM_LEASE_TTL (%s) must exceed REAPER_INTERVAL (%s)", cfg.RoomLeaseTTL, cfg.ReaperInterval)
	}
	return &cfg, nil
}
