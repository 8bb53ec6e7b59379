// Package metrics provides observability for the dining server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers table and transport metrics.
// All Record methods are safe on a nil *Collector so the engine can run without one.
type Collector struct {
	// Table metrics
	Meals            int64
	AcquireAttempts  int64
	AcquireFailures  int64
	Releases         int64
	Backoffs         int64
	SignalBroadcasts int64
	SignalWakeups    int64
	TimingChanges    int64

	// Snapshot broadcast metrics
	SnapshotCount      int64
	SnapshotLatencySum int64 // nanoseconds
	SnapshotLatencyMax int64
	LastSnapshotTime   time.Time

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = New()

// New returns an empty collector. Tests use their own; the server uses Get.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordMeal records a philosopher finishing a meal.
func (c *Collector) RecordMeal() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.Meals, 1)
}

// RecordAcquire records a compare-and-swap attempt on a fork.
func (c *Collector) RecordAcquire(ok bool) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.AcquireAttempts, 1)
	if !ok {
		atomic.AddInt64(&c.AcquireFailures, 1)
	}
}

// RecordRelease records forks returned to the table.
func (c *Collector) RecordRelease(n int) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.Releases, int64(n))
}

// RecordBackoff records a philosopher putting a fork down after failing to get the other.
func (c *Collector) RecordBackoff() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.Backoffs, 1)
}

// RecordBroadcast records a change signal broadcast.
func (c *Collector) RecordBroadcast() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.SignalBroadcasts, 1)
}

// RecordWakeup records a waiter woken by the change signal.
func (c *Collector) RecordWakeup() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.SignalWakeups, 1)
}

// RecordTimingChange records an external timing update.
func (c *Collector) RecordTimingChange() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TimingChanges, 1)
}

// RecordSnapshot records a snapshot broadcast cycle.
func (c *Collector) RecordSnapshot(latency time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.SnapshotCount, 1)
	atomic.AddInt64(&c.SnapshotLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.SnapshotLatencyMax) {
		atomic.StoreInt64(&c.SnapshotLatencyMax, int64(latency))
	}

	c.mu.Lock()
	c.LastSnapshotTime = time.Now()
	c.mu.Unlock()
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshots := atomic.LoadInt64(&c.SnapshotCount)
	attempts := atomic.LoadInt64(&c.AcquireAttempts)

	var snapAvg, contention float64
	if snapshots > 0 {
		snapAvg = float64(atomic.LoadInt64(&c.SnapshotLatencySum)) / float64(snapshots) / 1e6 // ms
	}
	if attempts > 0 {
		contention = float64(atomic.LoadInt64(&c.AcquireFailures)) / float64(attempts)
	}

	lastSnapshot := ""
	if !c.LastSnapshotTime.IsZero() {
		lastSnapshot = c.LastSnapshotTime.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"table": map[string]interface{}{
			"meals":             atomic.LoadInt64(&c.Meals),
			"acquire_attempts":  attempts,
			"acquire_failures":  atomic.LoadInt64(&c.AcquireFailures),
			"contention_ratio":  contention,
			"releases":          atomic.LoadInt64(&c.Releases),
			"backoffs":          atomic.LoadInt64(&c.Backoffs),
			"signal_broadcasts": atomic.LoadInt64(&c.SignalBroadcasts),
			"signal_wakeups":    atomic.LoadInt64(&c.SignalWakeups),
			"timing_changes":    atomic.LoadInt64(&c.TimingChanges),
		},

		"snapshots": map[string]interface{}{
			"count":          snapshots,
			"avg_latency_ms": snapAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.SnapshotLatencyMax)) / 1e6,
			"last":           lastSnapshot,
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		// Table metrics
		counter("dining_meals_total", "Meals finished by all philosophers", atomic.LoadInt64(&c.Meals))
		counter("dining_acquire_attempts_total", "Fork compare-and-swap attempts", atomic.LoadInt64(&c.AcquireAttempts))
		counter("dining_acquire_failures_total", "Fork compare-and-swap attempts that lost", atomic.LoadInt64(&c.AcquireFailures))
		counter("dining_releases_total", "Forks put back on the table", atomic.LoadInt64(&c.Releases))
		counter("dining_backoffs_total", "Forks put down after failing to get the neighbour's", atomic.LoadInt64(&c.Backoffs))
		counter("dining_signal_broadcasts_total", "Change signal broadcasts", atomic.LoadInt64(&c.SignalBroadcasts))
		counter("dining_signal_wakeups_total", "Waiters woken by the change signal", atomic.LoadInt64(&c.SignalWakeups))

		// Snapshot metrics
		fmt.Fprintf(w, "# HELP dining_snapshot_latency_max_ms Maximum snapshot broadcast latency\n")
		fmt.Fprintf(w, "# TYPE dining_snapshot_latency_max_ms gauge\n")
		fmt.Fprintf(w, "dining_snapshot_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.SnapshotLatencyMax))/1e6)

		// WebSocket metrics
		fmt.Fprintf(w, "# HELP dining_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE dining_ws_connections gauge\n")
		fmt.Fprintf(w, "dining_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP dining_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE dining_ws_messages_total counter\n")
		fmt.Fprintf(w, "dining_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "dining_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
