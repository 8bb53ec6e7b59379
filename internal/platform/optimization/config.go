// Package optimization provides concurrency tuning for the observer side of the server.
// The table itself has no knobs here; these size the channels and pools around it.
package optimization

import (
	"errors"
	"fmt"
	"runtime"
)

// Config holds tuned parameters for the hub, the event feed and the preset store.
type Config struct {
	// Channel and buffer sizes
	EventFeedCapacity      int
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Rate limiting
	MaxCommandsPerSecond int
	MaxClients           int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		EventFeedCapacity:      1024, // Enough for a few seconds at 1ms timings
		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64, // Per WebSocket

		// SQLite serialises writers; extra open conns only help readers.
		DBMaxOpenConns: numCPU,
		DBMaxIdleConns: 2,

		MaxCommandsPerSecond: 10, // Per client
		MaxClients:           200,
	}
}

// StressTestConfig returns aggressive settings for the agitator.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		EventFeedCapacity:      8192,
		BroadcastChannelBuffer: 1024,
		ClientSendBuffer:       256,

		DBMaxOpenConns: numCPU * 2,
		DBMaxIdleConns: numCPU,

		MaxCommandsPerSecond: 200,
		MaxClients:           1000,
	}
}

// LowResourceConfig returns minimal settings for development and tests.
func LowResourceConfig() *Config {
	return &Config{
		EventFeedCapacity:      64,
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,

		MaxCommandsPerSecond: 5,
		MaxClients:           20,
	}
}

// ErrUnknownProfile is returned by Profile for an unrecognised name.
var ErrUnknownProfile = errors.New("optimization: unknown tuning profile")

// Profile returns the settings registered under name: "default", "stress" or "low".
func Profile(name string) (*Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "stress":
		return StressTestConfig(), nil
	case "low":
		return LowResourceConfig(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// Recommendations provides suggestions based on observed metrics.
type Recommendations struct {
	IncreaseEventFeed       bool
	IncreaseBroadcastBuffer bool
	SlowDownTable           bool
	Notes                   []string
}

// Analyze examines a metrics.Collector snapshot and returns tuning recommendations.
func Analyze(metrics map[string]interface{}) *Recommendations {
	rec := &Recommendations{
		Notes: make([]string, 0),
	}

	// Check snapshot latency
	if snaps, ok := metrics["snapshots"].(map[string]interface{}); ok {
		if maxLat, ok := snaps["max_latency_ms"].(float64); ok && maxLat > 50 {
			rec.IncreaseBroadcastBuffer = true
			rec.Notes = append(rec.Notes, "Snapshot broadcast latency exceeds 50ms - increase broadcast buffer")
		}
	}

	// Check fork contention
	if table, ok := metrics["table"].(map[string]interface{}); ok {
		if ratio, ok := table["contention_ratio"].(float64); ok && ratio > 0.9 {
			rec.SlowDownTable = true
			rec.Notes = append(rec.Notes, "Over 90% of fork pickups fail - raise thinking time to reduce contention")
		}
		if broadcasts, ok := table["signal_broadcasts"].(int64); ok && broadcasts > 0 {
			if wakeups, ok := table["signal_wakeups"].(int64); ok && wakeups > broadcasts*int64(runtime.NumCPU())*4 {
				rec.IncreaseEventFeed = true
				rec.Notes = append(rec.Notes, "Wakeups far exceed broadcasts - thundering herd on the change signal")
			}
		}
	}

	// Check WebSocket backpressure
	if ws, ok := metrics["websocket"].(map[string]interface{}); ok {
		if errors, ok := ws["errors"].(int64); ok && errors > 0 {
			rec.IncreaseBroadcastBuffer = true
			rec.Notes = append(rec.Notes, "WebSocket errors detected - increase client send buffer")
		}
	}

	return rec
}

// ApplyRecommendations returns a copy of config with the recommended buffers
// doubled. config itself is not modified.
func ApplyRecommendations(config *Config, rec *Recommendations) *Config {
	next := *config
	if rec.IncreaseEventFeed {
		next.EventFeedCapacity *= 2
	}
	if rec.IncreaseBroadcastBuffer {
		next.BroadcastChannelBuffer *= 2
		next.ClientSendBuffer *= 2
	}
	return &next
}
