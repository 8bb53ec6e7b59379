// Package main runs the table in-process at full speed and exits non-zero
// if any observer saw an invariant broken.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/soak"
)

func main() {
	opts := soak.DefaultOptions()
	var preset string
	var debug bool

	cmd := &cobra.Command{
		Use:          "soak",
		Short:        "Hammer a table and check it never breaks its invariants",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, ok := engine.BuiltinPresets()[preset]
			if !ok {
				return fmt.Errorf("unknown preset %q (fast, medium or slow)", preset)
			}
			opts.Timing = d

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logger.NewLogger()
			log.SetDebug(debug)
			report, err := soak.Run(ctx, opts, log)
			if err != nil {
				return err
			}
			report.Print(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
			if !report.Passed() {
				os.Exit(1)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&opts.Philosophers, "philosophers", "n", opts.Philosophers, "number of seats at the table")
	flags.DurationVarP(&opts.Duration, "duration", "d", opts.Duration, "how long to soak")
	flags.IntVar(&opts.Observers, "observers", opts.Observers, "concurrent goroutines sampling the table")
	flags.DurationVar(&opts.WaitTimeout, "wait-timeout", opts.WaitTimeout, "upper bound on a blocked philosopher's wait")
	flags.Uint64Var(&opts.Seed, "seed", 0, "jitter seed (0 picks one from the clock)")
	flags.StringVar(&preset, "preset", "fast", "timing preset: fast, medium or slow")
	flags.BoolVar(&debug, "debug", false, "log every philosopher transition")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
