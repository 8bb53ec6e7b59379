package events

import (
	"sync"
	"testing"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/domain/philosopher"
)

func TestAppendStampsEvents(t *testing.T) {
	el := NewEventLog(4)
	e := el.Append(TableEvent{Type: EventTypeBackoff, ActorID: 2})
	if e.Seq != 1 {
		t.Errorf("Expected first seq 1, got %d", e.Seq)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("Expected ID and timestamp to be set: %+v", e)
	}
	if el.LastSeq() != 1 {
		t.Errorf("Expected LastSeq 1, got %d", el.LastSeq())
	}
}

func TestSinceWrapsAndReportsDrops(t *testing.T) {
	el := NewEventLog(3)
	for i := 0; i < 5; i++ {
		el.Append(TableEvent{Type: EventTypeStateChanged, ActorID: i})
	}

	got, dropped := el.Since(0)
	if dropped != 2 {
		t.Errorf("Expected 2 dropped, got %d", dropped)
	}
	if len(got) != 3 || got[0].Seq != 3 || got[2].Seq != 5 {
		t.Fatalf("Expected seqs 3..5, got %+v", got)
	}

	got, dropped = el.Since(3)
	if dropped != 0 || len(got) != 2 || got[0].ActorID != 3 {
		t.Errorf("Unexpected tail after cursor 3: %+v dropped=%d", got, dropped)
	}

	got, _ = el.Since(5)
	if len(got) != 0 {
		t.Errorf("Expected nothing after newest, got %d", len(got))
	}
}

func TestFilters(t *testing.T) {
	el := NewEventLog(0)
	el.Append(TableEvent{Type: EventTypeStateChanged, ActorID: 0, Payload: StateChangedPayload{From: philosopher.Thinking, To: philosopher.WaitingForLeftFork}})
	el.Append(TableEvent{Type: EventTypeBackoff, ActorID: 1})
	el.Append(TableEvent{Type: EventTypeTimingChanged, ActorID: SystemActor})

	if got, _ := el.Since(0, ByActor(1)); len(got) != 1 || got[0].Seq != 2 {
		t.Errorf("Expected only seq 2 for actor 1, got %+v", got)
	}
	if got, _ := el.Since(0, ByType(EventTypeTimingChanged)); len(got) != 1 {
		t.Errorf("Expected 1 timing event, got %d", len(got))
	}
	if got, _ := el.Since(0, ByActor(1), ByType(EventTypeTimingChanged)); len(got) != 0 {
		t.Errorf("Filters should combine, got %+v", got)
	}
	if got, _ := el.Since(2, ByActor(1)); len(got) != 0 {
		t.Errorf("Cursor should apply before filters, got %+v", got)
	}
}

func TestFilteredReadReportsDrops(t *testing.T) {
	el := NewEventLog(2)
	el.Append(TableEvent{Type: EventTypeBackoff, ActorID: 1})
	el.Append(TableEvent{Type: EventTypeBackoff, ActorID: 2})
	el.Append(TableEvent{Type: EventTypeBackoff, ActorID: 1})
	el.Append(TableEvent{Type: EventTypeBackoff, ActorID: 2})

	got, dropped := el.Since(0, ByActor(1))
	if dropped != 2 {
		t.Errorf("Expected 2 dropped, got %d", dropped)
	}
	if len(got) != 1 || got[0].Seq != 3 {
		t.Errorf("Expected seq 3 for actor 1, got %+v", got)
	}
}

func TestConcurrentAppendKeepsSequenceDense(t *testing.T) {
	el := NewEventLog(10000)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				el.Append(TableEvent{Type: EventTypeStateChanged, ActorID: id})
			}
		}(w)
	}
	wg.Wait()

	all, dropped := el.Since(0)
	if dropped != 0 || len(all) != 4000 {
		t.Fatalf("Expected 4000 retained events, got %d (dropped %d)", len(all), dropped)
	}
	for i, e := range all {
		if e.Seq != uint64(i+1) {
			t.Fatalf("Sequence gap at %d: %d", i, e.Seq)
		}
	}
}
