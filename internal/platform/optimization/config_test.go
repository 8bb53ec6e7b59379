package optimization

import (
	"errors"
	"testing"
)

func TestAnalyzeFlagsContentionAndBackpressure(t *testing.T) {
	snapshot := map[string]interface{}{
		"table": map[string]interface{}{
			"contention_ratio":  0.95,
			"signal_broadcasts": int64(0),
		},
		"websocket": map[string]interface{}{
			"errors": int64(3),
		},
	}
	rec := Analyze(snapshot)
	if !rec.SlowDownTable {
		t.Error("Expected high contention to be flagged")
	}
	if !rec.IncreaseBroadcastBuffer {
		t.Error("Expected websocket errors to be flagged")
	}
	if len(rec.Notes) != 2 {
		t.Errorf("Expected 2 notes, got %v", rec.Notes)
	}
}

func TestAnalyzeQuietMetrics(t *testing.T) {
	rec := Analyze(map[string]interface{}{})
	if rec.SlowDownTable || rec.IncreaseBroadcastBuffer || rec.IncreaseEventFeed || len(rec.Notes) != 0 {
		t.Errorf("Expected no recommendations, got %+v", rec)
	}
}

func TestApplyRecommendations(t *testing.T) {
	cfg := LowResourceConfig()
	next := ApplyRecommendations(cfg, &Recommendations{IncreaseBroadcastBuffer: true, IncreaseEventFeed: true})
	if next.ClientSendBuffer != 16 || next.BroadcastChannelBuffer != 32 || next.EventFeedCapacity != 128 {
		t.Errorf("Unexpected config after apply: %+v", next)
	}
	if *cfg != *LowResourceConfig() {
		t.Errorf("Input config was modified: %+v", cfg)
	}
	if same := ApplyRecommendations(cfg, &Recommendations{SlowDownTable: true}); *same != *cfg {
		t.Errorf("Expected no size change, got %+v", same)
	}
}

func TestProfile(t *testing.T) {
	tests := []struct {
		name    string
		clients int
	}{
		{"", DefaultConfig().MaxClients},
		{"default", DefaultConfig().MaxClients},
		{"stress", 1000},
		{"low", 20},
	}
	for _, tt := range tests {
		cfg, err := Profile(tt.name)
		if err != nil {
			t.Errorf("Profile(%q): %v", tt.name, err)
			continue
		}
		if cfg.MaxClients != tt.clients {
			t.Errorf("Profile(%q).MaxClients = %d, expected %d", tt.name, cfg.MaxClients, tt.clients)
		}
	}
	if _, err := Profile("turbo"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Expected ErrUnknownProfile, got %v", err)
	}
}
