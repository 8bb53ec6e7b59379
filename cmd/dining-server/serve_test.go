package main

import (
	"strings"
	"testing"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

func TestTuningAdvice(t *testing.T) {
	tuning := optimization.LowResourceConfig()

	if lines := tuningAdvice(tuning, map[string]interface{}{}); len(lines) != 0 {
		t.Errorf("Expected no advice for quiet metrics, got %v", lines)
	}

	noisy := map[string]interface{}{
		"websocket": map[string]interface{}{"errors": int64(2)},
	}
	lines := tuningAdvice(tuning, noisy)
	if len(lines) != 2 {
		t.Fatalf("Expected a note and a sizing line, got %v", lines)
	}
	if want := "event feed 64, broadcast buffer 32, client buffer 16"; !strings.Contains(lines[1], want) {
		t.Errorf("Expected %q in %q", want, lines[1])
	}
	if tuning.BroadcastChannelBuffer != 16 {
		t.Errorf("Advice modified the live tuning: %+v", tuning)
	}

	contended := map[string]interface{}{
		"table": map[string]interface{}{"contention_ratio": 0.99},
	}
	if lines := tuningAdvice(tuning, contended); len(lines) != 1 {
		t.Errorf("Contention alone should not resize buffers, got %v", lines)
	}
}
