package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/infra/storage"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/network"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the timing presets stored in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPresetStore(cmd, func(ctx context.Context, repo *storage.SQLitePresetRepository) error {
			list, err := repo.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPICKUP\tPUTDOWN\tEATING\tTHINKING\tBUILTIN\tUPDATED")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%v\t%s\n",
					p.Name, p.PickUpMs, p.PutDownMs, p.EatingMs, p.ThinkingMs, p.Builtin, humanize.Time(p.UpdatedAt))
			}
			return w.Flush()
		})
	},
}

var presetsSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Store the timing flags as a named preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return withPresetStore(cmd, func(ctx context.Context, repo *storage.SQLitePresetRepository) error {
			d := durations(cfg.Timing)
			presets := network.NewPresetService(repo, engine.NewTiming(d), nil, nil)
			p, err := presets.Save(ctx, args[0], d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved preset %s (%s)\n", p.Name, d)
			return nil
		})
	},
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Remove a user preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPresetStore(cmd, func(ctx context.Context, repo *storage.SQLitePresetRepository) error {
			return repo.Delete(ctx, args[0])
		})
	},
}

func init() {
	presetsCmd.AddCommand(presetsSaveCmd, presetsDeleteCmd)
	rootCmd.AddCommand(presetsCmd)
}

// withPresetStore opens the configured database, seeds the builtins and runs fn.
func withPresetStore(cmd *cobra.Command, fn func(context.Context, *storage.SQLitePresetRepository) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	db, err := storage.InitSQLite(cfg.Database, optimization.LowResourceConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo := storage.NewSQLitePresetRepository(db)
	if err := repo.SeedBuiltins(ctx, network.BuiltinPresets()); err != nil {
		return err
	}
	return fn(ctx, repo)
}
