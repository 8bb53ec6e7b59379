package network

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	// Deadline for a preset lookup triggered from a websocket command.
	commandTimeout = 5 * time.Second
)

// Commands accepted from observers.
const (
	CommandSetTiming   = "SET_TIMING"
	CommandApplyPreset = "APPLY_PRESET"
	CommandSavePreset  = "SAVE_PRESET"
	CommandSnapshot    = "GET_SNAPSHOT"
)

var errRateLimited = errors.New("rate limit exceeded")

// Command represents an incoming message from an observer.
type Command struct {
	Type    string          `json:"type"`    // SET_TIMING, APPLY_PRESET, SAVE_PRESET, GET_SNAPSHOT
	Payload json.RawMessage `json:"payload"` // Command-specific data
}

// PresetPayload names a preset and, for SAVE_PRESET, optionally its delays.
type PresetPayload struct {
	Name   string           `json:"name"`
	Timing engine.Durations `json:"timing"`
}

// Client is one connected observer.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	windowStart time.Time
	windowCount int
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.cfg.ClientSendBuffer),
	}
}

// Register adds the client to the hub. It reports false once the hub has stopped.
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.done:
		return false
	}
}

func (c *Client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// ReadPump pumps commands from the websocket connection to the table.
func (c *Client) ReadPump() {
	defer func() {
		c.unregister()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnf("Observer %s read error: %v", c.ID, err)
				c.hub.metrics.RecordWSError()
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.hub.logger.Warn("Failed to parse Command from WebSocket. err: " + err.Error())
			c.reply(cmd.Type, err)
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) allow(now time.Time) bool {
	if now.Sub(c.windowStart) >= time.Second {
		c.windowStart = now
		c.windowCount = 0
	}
	c.windowCount++
	return c.windowCount <= c.hub.cfg.MaxCommandsPerSecond
}

func (c *Client) handleCommand(cmd Command) {
	if !c.allow(time.Now()) {
		c.hub.logger.Warn("Rate limit exceeded for observer " + c.ID)
		c.reply(cmd.Type, errRateLimited)
		return
	}

	switch cmd.Type {
	case CommandSetTiming:
		var d engine.Durations
		if err := json.Unmarshal(cmd.Payload, &d); err != nil {
			c.reply(cmd.Type, err)
			return
		}
		err := c.hub.table.Timing().Patch(d)
		c.reply(cmd.Type, err)
	case CommandApplyPreset:
		if c.hub.presets == nil {
			c.reply(cmd.Type, errNoPresets)
			return
		}
		var p PresetPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			c.reply(cmd.Type, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := c.hub.presets.Apply(ctx, p.Name)
		c.reply(cmd.Type, err)
	case CommandSavePreset:
		if c.hub.presets == nil {
			c.reply(cmd.Type, errNoPresets)
			return
		}
		var p PresetPayload
		if err := json.Unmarshal(cmd.Payload, &p); err != nil {
			c.reply(cmd.Type, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		_, err := c.hub.presets.Save(ctx, p.Name, p.Timing)
		c.reply(cmd.Type, err)
	case CommandSnapshot:
		c.hub.sendTo(c, Envelope{Type: MessageSnapshot, Data: c.hub.table.Snapshot()})
	default:
		c.hub.logger.Warn("Unknown command from observer " + c.ID + ": " + cmd.Type)
		c.reply(cmd.Type, errors.New("unknown command "+cmd.Type))
	}
}

// reply acknowledges a command, or reports why it was refused.
func (c *Client) reply(command string, err error) {
	if err != nil {
		c.hub.sendTo(c, Envelope{Type: MessageError, Data: map[string]string{
			"command": command,
			"error":   err.Error(),
		}})
		return
	}
	c.hub.sendTo(c, Envelope{Type: MessageAck, Data: map[string]interface{}{
		"command": command,
		"timing":  c.hub.table.Timing().Load(),
	}})
}

// WritePump pumps messages from the hub to the websocket connection.
// Each message goes out as its own text frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.metrics.RecordWSError()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
