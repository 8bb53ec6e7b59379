package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/optimization"
)

// Message types pushed to observers.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
	MessageGap      = "gap"
	MessageAck      = "ack"
	MessageError    = "error"
)

// Envelope wraps every message the server writes to a websocket.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Table is the part of the engine the hub reads from and writes to.
type Table interface {
	Snapshot() engine.Snapshot
	Timing() *engine.Timing
}

// Hub maintains the set of active observers and fans table updates out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	table   Table
	presets *PresetService
	cfg     *optimization.Config
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes a new WebSocket Hub. presets may be nil, in which case
// preset commands are rejected.
func NewHub(table Table, presets *PresetService, cfg *optimization.Config, log *logger.Logger, m *metrics.Collector) *Hub {
	if cfg == nil {
		cfg = optimization.DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		broadcast:  make(chan []byte, cfg.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		table:      table,
		presets:    presets,
		cfg:        cfg,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.cfg.MaxClients {
				h.mu.Unlock()
				h.logger.Warnf("Rejecting client %s: %d observers connected", client.ID, h.cfg.MaxClients)
				close(client.send)
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Infof("Observer %s connected", client.ID)
			// A fresh observer gets the current table straight away.
			h.sendTo(client, Envelope{Type: MessageSnapshot, Data: h.table.Snapshot()})
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Infof("Observer %s disconnected", client.ID)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					// Slow observer; drop it rather than stall the fan-out.
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast serializes env and queues it for every observer.
// It never blocks; when the queue is full the message is dropped.
func (h *Hub) Broadcast(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s message for WebSocket broadcast: %v", env.Type, err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.metrics.RecordWSError()
		h.logger.Debugf("Broadcast queue full, dropped %s message", env.Type)
	}
}

// BroadcastSnapshot pushes a table snapshot to every observer.
func (h *Hub) BroadcastSnapshot(s engine.Snapshot) {
	h.Broadcast(Envelope{Type: MessageSnapshot, Data: s})
}

// BroadcastEvent pushes one feed event to every observer.
func (h *Hub) BroadcastEvent(event events.TableEvent) {
	h.Broadcast(Envelope{Type: MessageEvent, Data: event})
}

// sendTo queues a message for a single observer if it is still registered.
func (h *Hub) sendTo(c *Client, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Errorf("Failed to serialize %s reply: %v", env.Type, err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- payload:
		h.metrics.RecordWSMessage(false)
	default:
		h.metrics.RecordWSError()
	}
}

// StartEventPoller spawns a goroutine that tails the feed and pushes new
// events to the Hub. The feed is read by cursor so the table never waits on it.
func (h *Hub) StartEventPoller(ctx context.Context, feed *events.EventLog, interval time.Duration) {
	go h.pollEvents(ctx, feed, interval)
}

func (h *Hub) pollEvents(ctx context.Context, feed *events.EventLog, interval time.Duration) {
	pollInterval := time.NewTicker(interval)
	defer pollInterval.Stop()

	cursor := feed.LastSeq()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pollInterval.C:
			newEvents, dropped := feed.Since(cursor)
			if dropped > 0 {
				h.Broadcast(Envelope{Type: MessageGap, Data: map[string]uint64{"dropped": dropped}})
			}
			for _, event := range newEvents {
				h.BroadcastEvent(event)
				cursor = event.Seq
			}
		}
	}
}
