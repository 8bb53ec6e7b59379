package metrics

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordMeal()
	c.RecordAcquire(false)
	c.RecordBackoff()
	c.RecordSnapshot(time.Millisecond)
	c.RecordWSMessage(true)
}

func TestSnapshotCounts(t *testing.T) {
	c := New()
	c.RecordAcquire(true)
	c.RecordAcquire(false)
	c.RecordAcquire(false)
	c.RecordAcquire(true)
	c.RecordMeal()
	c.RecordRelease(2)
	c.RecordSnapshot(4 * time.Millisecond)

	table := c.Snapshot()["table"].(map[string]interface{})
	if table["acquire_attempts"].(int64) != 4 {
		t.Errorf("Expected 4 attempts, got %v", table["acquire_attempts"])
	}
	if table["contention_ratio"].(float64) != 0.5 {
		t.Errorf("Expected contention 0.5, got %v", table["contention_ratio"])
	}
	if table["releases"].(int64) != 2 {
		t.Errorf("Expected 2 releases, got %v", table["releases"])
	}

	snaps := c.Snapshot()["snapshots"].(map[string]interface{})
	if snaps["max_latency_ms"].(float64) != 4 {
		t.Errorf("Expected max latency 4ms, got %v", snaps["max_latency_ms"])
	}
}

func TestHandlers(t *testing.T) {
	c := New()
	c.RecordMeal()
	c.RecordWSConnection(1)

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("metrics JSON: %v", err)
	}
	if body["table"].(map[string]interface{})["meals"].(float64) != 1 {
		t.Errorf("Expected 1 meal in JSON, got %v", body["table"])
	}

	rec = httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prometheus", nil))
	text := rec.Body.String()
	for _, want := range []string{"dining_meals_total 1", "dining_ws_connections 1", "# TYPE dining_backoffs_total counter"} {
		if !strings.Contains(text, want) {
			t.Errorf("Prometheus output missing %q", want)
		}
	}
}
