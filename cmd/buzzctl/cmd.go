package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/playperu/buzzboard/internal/content"
	"github.com/playperu/buzzboard/internal/database"
	"github.com/playperu/buzzboard/internal/engine"
	"github.com/playperu/buzzboard/internal/migrations"
	"github.com/playperu/buzzboard/internal/store"
)

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "buzzctl",
		Short:         "Buzzboard maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "data/buzzboard.db", "path to the SQLite database")

	root.AddCommand(
		newValidateCmd(),
		newGamesCmd(&dbPath),
		newExportCmd(&dbPath),
		newReplayCmd(&dbPath),
		newMigrateCmd(&dbPath),
	)
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check game documents and print a summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, path := range args {
				g, err := content.Load(path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				printSummary(out, path, g)
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, path string, g *engine.Game) {
	fmt.Fprintf(w, "%s: %q, %d round(s)\n", path, g.Title, g.NumRounds())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for r, b := range g.Boards {
		kind := "board"
		if b.LongForm {
			kind = "long-form"
		}
		wagers := 0
		for _, cat := range b.Categories {
			for _, c := range cat.Clues {
				if c.Wagerable {
					wagers++
				}
			}
		}
		fmt.Fprintf(tw, "  round %d\t%s\t%dx%d\t%d wager(s)\n", r, kind, b.Rows(), b.Cols(), wagers)
	}
	tw.Flush()
}

func newGamesCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List stored games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), *dbPath, func(st *store.SQLiteStore) error {
				games, err := st.ListGames(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, g := range games {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", g.ID, g.Title, g.Rounds, g.CreatedAt)
				}
				return tw.Flush()
			})
		},
	}
}

func newExportCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export GAME_ID",
		Short: "Print a stored game as an uploadable document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, *dbPath, func(st *store.SQLiteStore) error {
				g, err := st.GetGame(ctx, args[0])
				if err != nil {
					return fmt.Errorf("game %s: %w", args[0], err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(content.FromGame(g))
			})
		},
	}
}

func newReplayCmd(dbPath *string) *cobra.Command {
	var upTo int

	cmd := &cobra.Command{
		Use:   "replay ROOM",
		Short: "Rebuild a room's state from its action log and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, *dbPath, func(st *store.SQLiteStore) error {
				s, err := replayRoom(ctx, st, args[0], upTo)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			})
		},
	}
	cmd.Flags().IntVar(&upTo, "seq", 0, "stop after this many actions (0 replays all)")
	return cmd
}

func replayRoom(ctx context.Context, st *store.SQLiteStore, name string, upTo int) (*engine.State, error) {
	rm, err := st.GetRoom(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", name, err)
	}
	g, err := st.GetGame(ctx, rm.GameID)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", rm.GameID, err)
	}
	s, err := engine.NewState(g)
	if err != nil {
		return nil, err
	}
	actions, err := st.Actions(ctx, rm.ID)
	if err != nil {
		return nil, err
	}
	if upTo > 0 && upTo < len(actions) {
		actions = actions[:upTo]
	}
	return engine.Replay(s, actions), nil
}

func newMigrateCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := database.Open(ctx, *dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Run(db); err != nil {
				return err
			}
			current, latest, err := migrations.Version(ctx, db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (latest %d)\n", current, latest)
			return nil
		},
	}
}

func withStore(ctx context.Context, path string, fn func(*store.SQLiteStore) error) error {
	db, err := database.Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(store.New(db))
}
