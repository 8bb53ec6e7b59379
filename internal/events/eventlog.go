// Package events provides the observable feed of what happens at the table.
// It is an in-memory ring: observers poll it by sequence number, old entries fall off.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/domain/philosopher"
)

// EventType defines the category of a table event.
type EventType string

const (
	EventTypeStateChanged  EventType = "STATE_CHANGED"
	EventTypeMealFinished  EventType = "MEAL_FINISHED"
	EventTypeBackoff       EventType = "BACKOFF"
	EventTypeTimingChanged EventType = "TIMING_CHANGED"
	EventTypePresetApplied EventType = "PRESET_APPLIED"
	EventTypeEngineStopped EventType = "ENGINE_STOPPED"
	EventTypeEngineFailed  EventType = "ENGINE_FAILED"
)

// SystemActor is the ActorID used for events not caused by a philosopher.
const SystemActor = -1

// DefaultCapacity is used when NewEventLog is given a non-positive capacity.
const DefaultCapacity = 1024

func init() {
	// Event IDs are minted on the philosophers' hot path.
	uuid.EnableRandPool()
}

// StateChangedPayload describes a philosopher state transition.
type StateChangedPayload struct {
	From philosopher.State `json:"from"`
	To   philosopher.State `json:"to"`
}

// BackoffPayload describes a philosopher putting a fork down because the other was taken.
type BackoffPayload struct {
	Released int `json:"released"` // fork index put back
	Wanted   int `json:"wanted"`   // fork index that was taken
}

// MealPayload is attached to EventTypeMealFinished.
type MealPayload struct {
	Meals int64 `json:"meals"` // meals eaten by this philosopher so far
}

// TableEvent represents an immutable record of something that happened at the table.
type TableEvent struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   int         `json:"actor_id"` // philosopher index, or SystemActor
	Payload   interface{} `json:"payload,omitempty"`
}

// Sink receives events. *EventLog implements it; the engine only needs this.
type Sink interface {
	Append(event TableEvent) TableEvent
}

// EventLog is a bounded, append-only ring of table events.
type EventLog struct {
	mu   sync.RWMutex
	buf  []TableEvent
	next uint64 // sequence number of the next event; first event is 1
}

// NewEventLog creates a feed holding at most capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventLog{
		buf:  make([]TableEvent, capacity),
		next: 1,
	}
}

// Append stamps the event with an ID, sequence number and timestamp (if unset)
// and stores it, evicting the oldest entry when full.
func (el *EventLog) Append(event TableEvent) TableEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	defer el.mu.Unlock()
	event.Seq = el.next
	el.buf[event.Seq%uint64(len(el.buf))] = event
	el.next++
	return event
}

// LastSeq returns the sequence number of the newest event, or 0 if empty.
func (el *EventLog) LastSeq() uint64 {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.next - 1
}

// Filter selects events in Since.
type Filter func(TableEvent) bool

// ByActor matches events caused by one philosopher.
func ByActor(actorID int) Filter {
	return func(e TableEvent) bool { return e.ActorID == actorID }
}

// ByType matches events of one type.
func ByType(t EventType) Filter {
	return func(e TableEvent) bool { return e.Type == t }
}

// Since returns the retained events with Seq > after that match every filter,
// oldest first, and how many events after the cursor were already evicted.
// dropped counts evicted events of any kind.
func (el *EventLog) Since(after uint64, filters ...Filter) (events []TableEvent, dropped uint64) {
	el.mu.RLock()
	defer el.mu.RUnlock()

	last := el.next - 1
	if after >= last {
		return nil, 0
	}
	capacity := uint64(len(el.buf))
	first := after + 1
	if last >= capacity && first <= last-capacity {
		oldest := last - capacity + 1
		dropped = oldest - first
		first = oldest
	}
	events = make([]TableEvent, 0, last-first+1)
next:
	for seq := first; seq <= last; seq++ {
		e := el.buf[seq%capacity]
		for _, match := range filters {
			if !match(e) {
				continue next
			}
		}
		events = append(events, e)
	}
	return events, dropped
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
