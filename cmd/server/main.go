package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/buzzboard/internal/config"
	"github.com/playperu/buzzboard/internal/database"
	"github.com/playperu/buzzboard/internal/handler/health"
	"github.com/playperu/buzzboard/internal/migrations"
	"github.com/playperu/buzzboard/internal/room"
	"github.com/playperu/buzzboard/internal/server"
	"github.com/playperu/buzzboard/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	st := store.New(db)
	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, st); err != nil {
			return fmt.Errorf("seeding demo game: %w", err)
		}
	}

	checks := map[string]health.Checker{"sqlite": health.CheckerFunc(st.Ping)}

	// --- Redis (optional) ---
	broker := room.NewBroker()
	opts := room.Options{
		ClueReadGrace:    cfg.ClueReadGrace,
		LongFormDuration: cfg.LongFormDuration,
	}
	var (
		pub    room.Publisher
		fanout *room.RedisFanout
	)
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		fanout = room.NewRedisFanout(rdb, logger)
		pub = fanout
		opts.Leaser = room.NewRedisLeaser(rdb, cfg.RoomLeaseTTL)
		checks["redis"] = redisChecker{rdb}
	}

	// --- Rooms ---
	rooms := room.NewManager(st, broker, pub, logger, opts)
	defer rooms.Close()

	reaper, err := room.StartReaper(rooms, cfg.ReaperInterval, cfg.RoomIdleTimeout, logger)
	if err != nil {
		return err
	}
	defer reaper.Shutdown()

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Store:         st,
		Rooms:         rooms,
		PublicBaseURL: cfg.PublicBaseURL,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	if fanout != nil {
		g.Go(func() error {
			return fanout.Run(gctx, rooms)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
