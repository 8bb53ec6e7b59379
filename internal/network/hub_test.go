package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T, f *fixture, cfg *optimization.Config) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(f.engine, f.presets, cfg, nil, f.metrics)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	NewAPI(f.engine, f.presets, hub, f.metrics, nil).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad frame %q: %v", data, err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func TestObserverReceivesSnapshotOnConnect(t *testing.T) {
	f := newFixture(t)
	_, srv := startHub(t, f, nil)
	conn := dial(t, srv)

	msg := readUntil(t, conn, MessageSnapshot)
	var s engine.Snapshot
	if err := json.Unmarshal(msg.Data, &s); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(s.Philosophers) != 5 {
		t.Errorf("Expected 5 philosophers, got %d", len(s.Philosophers))
	}
}

func TestSetTimingCommand(t *testing.T) {
	f := newFixture(t)
	_, srv := startHub(t, f, nil)
	conn := dial(t, srv)
	readUntil(t, conn, MessageSnapshot)

	if err := conn.WriteJSON(Command{Type: CommandSetTiming, Payload: json.RawMessage(`{"thinking_ms": 7}`)}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	readUntil(t, conn, MessageAck)
	if got := f.engine.Timing().ThinkingMs(); got != 7 {
		t.Errorf("Expected thinking delay 7, got %d", got)
	}

	conn.WriteJSON(Command{Type: CommandSetTiming, Payload: json.RawMessage(`{"eating_ms": -1}`)})
	readUntil(t, conn, MessageError)
	if got := f.engine.Timing().EatingMs(); got != engine.SlowDurations.EatingMs {
		t.Errorf("Rejected command changed eating delay to %d", got)
	}
}

func TestApplyPresetCommand(t *testing.T) {
	f := newFixture(t)
	_, srv := startHub(t, f, nil)
	conn := dial(t, srv)
	readUntil(t, conn, MessageSnapshot)

	conn.WriteJSON(Command{Type: CommandApplyPreset, Payload: json.RawMessage(`{"name": "medium"}`)})
	readUntil(t, conn, MessageAck)
	if got := f.engine.Timing().Load(); got != engine.MediumDurations {
		t.Errorf("Expected medium timing, got %v", got)
	}

	conn.WriteJSON(Command{Type: CommandApplyPreset, Payload: json.RawMessage(`{"name": "missing"}`)})
	readUntil(t, conn, MessageError)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	cfg := optimization.DefaultConfig()
	cfg.MaxCommandsPerSecond = 1
	_, srv := startHub(t, f, cfg)
	conn := dial(t, srv)
	readUntil(t, conn, MessageSnapshot)

	conn.WriteJSON(Command{Type: CommandSnapshot})
	conn.WriteJSON(Command{Type: CommandSnapshot})
	msg := readUntil(t, conn, MessageError)
	if !strings.Contains(string(msg.Data), errRateLimited.Error()) {
		t.Errorf("Expected rate limit error, got %s", msg.Data)
	}
}

func TestEventPollerForwardsFeed(t *testing.T) {
	f := newFixture(t)
	hub, srv := startHub(t, f, nil)
	conn := dial(t, srv)
	readUntil(t, conn, MessageSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.StartEventPoller(ctx, f.feed, 10*time.Millisecond)

	f.feed.Append(events.TableEvent{Type: events.EventTypePresetApplied, ActorID: events.SystemActor})
	msg := readUntil(t, conn, MessageEvent)
	var ev events.TableEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Seq == 0 || ev.ID == "" {
		t.Errorf("Expected stamped event, got %+v", ev)
	}
}

func TestMaxClients(t *testing.T) {
	f := newFixture(t)
	cfg := optimization.DefaultConfig()
	cfg.MaxClients = 1
	hub, srv := startHub(t, f, cfg)

	first := dial(t, srv)
	readUntil(t, first, MessageSnapshot)

	second := dial(t, srv)
	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err := second.ReadMessage()
		if err != nil {
			break
		}
	}
	if n := hub.ClientCount(); n != 1 {
		t.Errorf("Expected 1 registered observer, got %d", n)
	}
}
