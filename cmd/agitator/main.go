// Package main - agitator
// Load generator: many websocket observers retiming the table while
// checking every snapshot they receive.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	MaxDelayMs     int64
	ResultsFile    string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Snapshots        int64
	Acks             int64
	Rejections       int64
	InvalidSnapshots int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

var presetNames = []string{"fast", "medium", "slow"}

func main() {
	var config Config
	cmd := &cobra.Command{
		Use:          "agitator",
		Short:        "Stress a running dining-server over websocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(config)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&config.ServerURL, "url", "ws://localhost:8080/ws", "WebSocket server URL")
	flags.IntVar(&config.NumClients, "clients", 50, "Number of concurrent clients")
	flags.DurationVar(&config.ActionInterval, "interval", 100*time.Millisecond, "Command interval per client")
	flags.DurationVar(&config.TestDuration, "duration", 60*time.Second, "Test duration")
	flags.Int64Var(&config.MaxDelayMs, "max-delay", 50, "Largest delay a client will set, in milliseconds")
	flags.StringVar(&config.ResultsFile, "out", "stress_test_results.json", "Where to write the JSON results")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(config Config) error {
	fmt.Println("=========================================")
	fmt.Println("AGITATOR - dining table stress test")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.ServerURL)
	fmt.Printf("Clients: %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runStressTest(ctx, config)
	return printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	fmt.Println("\nStarting clients...")
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < config.NumClients; i++ {
		clientID := i
		g.Go(func() error {
			runClient(gctx, clientID, config, stats)
			return nil
		})

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d clients started\n\n", config.NumClients)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: Sent=%s Recv=%s Invalid=%d Errors=%d\n",
					humanize.Comma(atomic.LoadInt64(&stats.MessagesSent)),
					humanize.Comma(atomic.LoadInt64(&stats.MessagesReceived)),
					atomic.LoadInt64(&stats.InvalidSnapshots),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	g.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client %d: Connection failed: %v\n", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(clientID)))

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			inspect(data, stats)
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
			cmd := randomCommand(rng, config.MaxDelayMs)
			start := time.Now()
			if err := conn.WriteJSON(cmd); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

// randomCommand mostly nudges one delay, and now and then switches preset.
func randomCommand(rng *rand.Rand, maxDelayMs int64) network.Command {
	if rng.IntN(10) == 0 {
		payload, _ := json.Marshal(network.PresetPayload{Name: presetNames[rng.IntN(len(presetNames))]})
		return network.Command{Type: network.CommandApplyPreset, Payload: payload}
	}
	ms := 1 + rng.Int64N(maxDelayMs)
	var d engine.Durations
	switch rng.IntN(4) {
	case 0:
		d.PickUpMs = ms
	case 1:
		d.PutDownMs = ms
	case 2:
		d.EatingMs = ms
	default:
		d.ThinkingMs = ms
	}
	payload, _ := json.Marshal(d)
	return network.Command{Type: network.CommandSetTiming, Payload: payload}
}

// inspect classifies a server message and validates snapshots.
func inspect(data []byte, stats *Stats) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	switch env.Type {
	case network.MessageAck:
		atomic.AddInt64(&stats.Acks, 1)
	case network.MessageError:
		atomic.AddInt64(&stats.Rejections, 1)
	case network.MessageSnapshot:
		atomic.AddInt64(&stats.Snapshots, 1)
		var s engine.Snapshot
		if err := json.Unmarshal(env.Data, &s); err != nil || !validSnapshot(s) {
			atomic.AddInt64(&stats.InvalidSnapshots, 1)
		}
	}
}

func validSnapshot(s engine.Snapshot) bool {
	n := len(s.Philosophers)
	if n < 2 || len(s.Forks) != n || s.HeldForks() > n {
		return false
	}
	for _, p := range s.Philosophers {
		if !p.State.Valid() {
			return false
		}
	}
	for _, f := range s.Forks {
		if f.Owner == nil {
			continue
		}
		if owner := *f.Owner; owner != f.ID && owner != (f.ID+n-1)%n {
			return false
		}
	}
	return true
}

func printResults(stats *Stats, config Config) error {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	invalid := atomic.LoadInt64(&stats.InvalidSnapshots)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("Commands Sent:     %s\n", humanize.Comma(sent))
	fmt.Printf("Messages Received: %s\n", humanize.Comma(recv))
	fmt.Printf("Snapshots:         %s\n", humanize.Comma(atomic.LoadInt64(&stats.Snapshots)))
	fmt.Printf("Acks / Rejections: %s / %s\n", humanize.Comma(atomic.LoadInt64(&stats.Acks)), humanize.Comma(atomic.LoadInt64(&stats.Rejections)))
	fmt.Printf("Invalid Snapshots: %d\n", invalid)
	fmt.Printf("Errors:            %d\n", errs)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f cmd/sec\n", throughput)

	if len(stats.Latencies) > 0 {
		var total time.Duration
		lo, hi := stats.Latencies[0], stats.Latencies[0]
		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}
		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", lo)
		fmt.Printf("  Avg: %v\n", total/time.Duration(len(stats.Latencies)))
		fmt.Printf("  Max: %v\n", hi)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case invalid > 0:
		fmt.Println("TEST FAILED: observers saw an impossible table")
	case errs == 0:
		fmt.Println("TEST PASSED: table stayed consistent under load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("TEST WARNING: Some errors detected")
	default:
		fmt.Println("TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"commands_sent":      sent,
		"messages_received":  recv,
		"invalid_snapshots":  invalid,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(config.ResultsFile, jsonData, 0o644); err != nil {
		return err
	}
	fmt.Printf("\nResults saved to %s\n", config.ResultsFile)
	if invalid > 0 {
		return fmt.Errorf("%d invalid snapshots", invalid)
	}
	return nil
}
