package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/infra/storage"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/network"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/config"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

const (
	eventPollInterval = 50 * time.Millisecond
	tuningInterval    = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Seat the table and serve the dashboard API",
	Long: `Start the philosophers, the snapshot ticker, the websocket hub and the
HTTP API. SIGINT or SIGTERM stops the table and waits for every philosopher
to put its forks down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	appLogger := newLogger(cfg)
	appLogger.Info("Initializing dining philosophers server...")

	tuning, err := optimization.Profile(cfg.Tuning)
	if err != nil {
		return err
	}
	collector := metrics.Get()

	appLogger.Infof("Initializing SQLite database '%s'...", cfg.Database)
	db, err := storage.InitSQLite(cfg.Database, tuning)
	if err != nil {
		return fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	defer db.Close()
	repo := storage.NewSQLitePresetRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repo.SeedBuiltins(ctx, network.BuiltinPresets()); err != nil {
		return fmt.Errorf("failed to seed presets: %w", err)
	}

	appLogger.Info("Bootstrapping event feed...")
	feed := events.NewEventLog(tuning.EventFeedCapacity)

	appLogger.Infof("Seating %d philosophers...", cfg.Philosophers)
	table, err := engine.New(cfg.Philosophers,
		engine.WithTiming(durations(cfg.Timing)),
		engine.WithSeed(cfg.Seed),
		engine.WithWaitTimeout(cfg.WaitTimeout),
		engine.WithLogger(appLogger),
		engine.WithEvents(feed),
		engine.WithMetrics(collector),
	)
	if err != nil {
		return err
	}
	started := time.Now()

	presets := network.NewPresetService(repo, table.Timing(), feed, appLogger)
	hub := network.NewHub(table, presets, tuning, appLogger, collector)

	mux := http.NewServeMux()
	network.NewAPI(table, presets, hub, collector, appLogger).RegisterRoutes(mux)
	network.NewReplayHandler(feed, appLogger).RegisterRoutes(mux)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          appLogger.StdError(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	hub.StartEventPoller(gctx, feed, eventPollInterval)

	ticker := engine.NewTicker(table, cfg.SnapshotInterval, func(s engine.Snapshot) {
		collector.RecordSnapshot(time.Since(s.Taken))
		hub.BroadcastSnapshot(s)
	}, appLogger)
	g.Go(func() error {
		ticker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		watchTuning(gctx, tuning, collector, appLogger)
		return nil
	})

	g.Go(func() error {
		appLogger.Infof("HTTP API & WS Server listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			appLogger.Info("Shutting down...")
		case <-table.Done():
			appLogger.Warn("Table stopped on its own, shutting down server")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.Errorf("HTTP shutdown: %v", err)
		}
		if err := table.Shutdown(shutdownCtx); err != nil && table.Err() == nil {
			return fmt.Errorf("philosophers did not leave the table: %w", err)
		}
		return table.Err()
	})

	appLogger.Info("Server running. Press Ctrl+C to exit.")
	err = g.Wait()
	summarize(appLogger, table.Snapshot(), collector, time.Since(started))
	return err
}

func durations(t config.Timing) engine.Durations {
	return engine.Durations{
		PickUpMs:   t.PickUpMs,
		PutDownMs:  t.PutDownMs,
		EatingMs:   t.EatingMs,
		ThinkingMs: t.ThinkingMs,
	}
}

// watchTuning periodically logs tuning notes derived from the live counters.
func watchTuning(ctx context.Context, tuning *optimization.Config, collector *metrics.Collector, log *logger.Logger) {
	t := time.NewTicker(tuningInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, line := range tuningAdvice(tuning, collector.Snapshot()) {
				log.Warn("Tuning: " + line)
			}
		}
	}
}

// tuningAdvice turns a metrics snapshot into log lines. When the
// recommendations change any buffer size, the last line names the new sizes.
func tuningAdvice(tuning *optimization.Config, snapshot map[string]interface{}) []string {
	rec := optimization.Analyze(snapshot)
	lines := append([]string(nil), rec.Notes...)
	if next := optimization.ApplyRecommendations(tuning, rec); *next != *tuning {
		lines = append(lines, fmt.Sprintf("restart with event feed %d, broadcast buffer %d, client buffer %d",
			next.EventFeedCapacity, next.BroadcastChannelBuffer, next.ClientSendBuffer))
	}
	return lines
}

func summarize(log *logger.Logger, s engine.Snapshot, collector *metrics.Collector, uptime time.Duration) {
	log.Infof("Served for %s: %s meals, %s backoffs, %s fork pickups attempted",
		uptime.Round(time.Second),
		humanize.Comma(s.TotalMeals()),
		humanize.Comma(atomic.LoadInt64(&collector.Backoffs)),
		humanize.Comma(atomic.LoadInt64(&collector.AcquireAttempts)),
	)
	for _, p := range s.Philosophers {
		log.Infof("  %-16s %s meals", p.Name, humanize.Comma(p.Meals))
	}
}
