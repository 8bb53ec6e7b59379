// Package soak runs a table at full speed while observers hammer the
// read side, and reports every invariant the observers saw broken.
package soak

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

// Options configures a soak run.
type Options struct {
	Philosophers int
	Timing       engine.Durations
	Duration     time.Duration
	Observers    int
	WaitTimeout  time.Duration
	Seed         uint64
}

// DefaultOptions soaks a table of five at the fast preset.
func DefaultOptions() Options {
	return Options{
		Philosophers: 5,
		Timing:       engine.FastDurations,
		Duration:     10 * time.Second,
		Observers:    4,
		WaitTimeout:  engine.DefaultWaitTimeout,
	}
}

// Check is one invariant and how often it was seen broken.
type Check struct {
	Name       string
	Violations int64
}

// Report is the outcome of a soak run.
type Report struct {
	Elapsed   time.Duration
	Samples   int64
	Names     []string
	Meals     []int64
	Backoffs  int64
	Events    uint64
	Checks    []Check
	EngineErr error
	Notes     []string
}

// Passed reports whether no check was violated and the engine stayed healthy.
func (r *Report) Passed() bool {
	if r.EngineErr != nil {
		return false
	}
	for _, c := range r.Checks {
		if c.Violations > 0 {
			return false
		}
	}
	return true
}

type counters struct {
	invalidState   atomic.Int64
	badOwner       atomic.Int64
	farOwner       atomic.Int64
	overHeld       atomic.Int64
	accessorErrors atomic.Int64
	samples        atomic.Int64
}

// Run seats the table, samples it from opts.Observers goroutines until the
// duration elapses or ctx is cancelled, then stops the table and reports.
func Run(ctx context.Context, opts Options, log *logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Observers < 1 {
		opts.Observers = 1
	}
	collector := metrics.New()
	feed := events.NewEventLog(optimization.LowResourceConfig().EventFeedCapacity)

	engineOpts := []engine.Option{
		engine.WithTiming(opts.Timing),
		engine.WithSeed(opts.Seed),
		engine.WithLogger(log),
		engine.WithEvents(feed),
		engine.WithMetrics(collector),
	}
	if opts.WaitTimeout > 0 {
		engineOpts = append(engineOpts, engine.WithWaitTimeout(opts.WaitTimeout))
	}
	table, err := engine.New(opts.Philosophers, engineOpts...)
	if err != nil {
		return nil, err
	}

	log.Infof("Soaking %d philosophers at %s for %v", opts.Philosophers, opts.Timing, opts.Duration)
	runCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var c counters
	var wg sync.WaitGroup
	started := time.Now()
	for o := 0; o < opts.Observers; o++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			observe(runCtx, table, &c)
		}()
	}

	select {
	case <-runCtx.Done():
	case <-table.Done():
		log.Warn("Table stopped before the soak finished")
	}
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := table.Shutdown(shutdownCtx); err != nil && table.Err() == nil {
		return nil, fmt.Errorf("philosophers did not leave the table: %w", err)
	}

	snap := table.Snapshot()
	r := &Report{
		Elapsed:   time.Since(started),
		Samples:   c.samples.Load(),
		Names:     make([]string, len(snap.Philosophers)),
		Meals:     make([]int64, len(snap.Philosophers)),
		Backoffs:  atomic.LoadInt64(&collector.Backoffs),
		Events:    feed.LastSeq(),
		EngineErr: table.Err(),
		Notes:     optimization.Analyze(collector.Snapshot()).Notes,
	}
	starving := int64(0)
	for i, p := range snap.Philosophers {
		r.Names[i] = p.Name
		r.Meals[i] = p.Meals
		if p.Meals == 0 {
			starving++
		}
	}
	held := int64(snap.HeldForks())
	r.Checks = []Check{
		{"every sampled state is valid", c.invalidState.Load()},
		{"fork owners are real philosophers", c.badOwner.Load()},
		{"forks are only held by adjacent seats", c.farOwner.Load()},
		{"no seat owns more than two forks", c.overHeld.Load()},
		{"accessors accept every seat index", c.accessorErrors.Load()},
		{"every philosopher ate", starving},
		{"all forks returned after stop", held},
	}
	return r, nil
}

func observe(ctx context.Context, table *engine.Engine, c *counters) {
	n := table.Count()
	owned := make([]int, n)
	for ctx.Err() == nil {
		c.samples.Add(1)
		clear(owned)
		for i := 0; i < n; i++ {
			s, err := table.State(i)
			if err != nil {
				c.accessorErrors.Add(1)
			} else if !s.Valid() {
				c.invalidState.Add(1)
			}
			owner, ok, err := table.ForkOwner(i)
			if err != nil {
				c.accessorErrors.Add(1)
				continue
			}
			if !ok {
				continue
			}
			if owner < 0 || owner >= n {
				c.badOwner.Add(1)
				continue
			}
			if owner != i && owner != (i+n-1)%n {
				c.farOwner.Add(1)
			}
			owned[owner]++
		}
		for _, k := range owned {
			if k > 2 {
				c.overHeld.Add(1)
			}
		}
	}
}

// Print writes a human readable report. Colour is applied only when colour is true.
func (r *Report) Print(w io.Writer, colour bool) {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	if colour {
		pass.EnableColor()
		fail.EnableColor()
	} else {
		pass.DisableColor()
		fail.DisableColor()
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SOAK REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Elapsed:  %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Samples:  %s\n", humanize.Comma(r.Samples))
	fmt.Fprintf(w, "Events:   %s\n", humanize.Comma(int64(r.Events)))
	fmt.Fprintf(w, "Backoffs: %s\n", humanize.Comma(r.Backoffs))
	fmt.Fprintln(w)
	for i, name := range r.Names {
		fmt.Fprintf(w, "  %-16s %s meals\n", name, humanize.Comma(r.Meals[i]))
	}
	fmt.Fprintln(w)
	for _, c := range r.Checks {
		if c.Violations == 0 {
			fmt.Fprintf(w, "  %s %s\n", pass.Sprint("PASS"), c.Name)
		} else {
			fmt.Fprintf(w, "  %s %s (%s)\n", fail.Sprint("FAIL"), c.Name, humanize.Comma(c.Violations))
		}
	}
	if r.EngineErr != nil {
		fmt.Fprintf(w, "  %s engine error: %v\n", fail.Sprint("FAIL"), r.EngineErr)
	}
	for _, note := range r.Notes {
		fmt.Fprintf(w, "  note: %s\n", note)
	}
	fmt.Fprintln(w, rule)
	if r.Passed() {
		fmt.Fprintln(w, pass.Sprint("Table held every invariant"))
	} else {
		fmt.Fprintln(w, fail.Sprint("Table broke at least one invariant"))
	}
}
