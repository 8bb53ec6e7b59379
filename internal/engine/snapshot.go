package engine

import (
	"time"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/domain/philosopher"
)

// PhilosopherView is one seat as seen by an observer.
type PhilosopherView struct {
	ID    int               `json:"id"`
	Name  string            `json:"name"`
	State philosopher.State `json:"state"`
	Meals int64             `json:"meals"`
}

// ForkView is one fork as seen by an observer. Owner is nil when the fork is free.
type ForkView struct {
	ID    int    `json:"id"`
	Owner *int   `json:"owner"`
	Name  string `json:"owner_name,omitempty"`
}

// Snapshot is a point-in-time read of the whole table.
// Each cell is read atomically but the set is not a consistent cut.
type Snapshot struct {
	Taken        time.Time         `json:"taken"`
	Philosophers []PhilosopherView `json:"philosophers"`
	Forks        []ForkView        `json:"forks"`
	Timing       Durations         `json:"timing"`
	Running      bool              `json:"running"`
	Error        string            `json:"error,omitempty"`
}

// Snapshot reads every state, fork and delay without blocking any philosopher.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Taken:        time.Now(),
		Philosophers: make([]PhilosopherView, e.count),
		Forks:        make([]ForkView, e.count),
		Timing:       e.timing.Load(),
		Running:      !e.stopped.Load(),
	}
	for i := 0; i < e.count; i++ {
		s.Philosophers[i] = PhilosopherView{
			ID:    i,
			Name:  e.names[i],
			State: philosopher.State(e.states[i].Load()),
			Meals: e.meals[i].Load(),
		}
		f := ForkView{ID: i}
		if owner, held := e.forks.Owner(i); held {
			f.Owner = &owner
			if owner >= 0 && owner < e.count {
				f.Name = e.names[owner]
			}
		}
		s.Forks[i] = f
	}
	if err := e.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

// HeldForks counts forks currently off the table.
func (s Snapshot) HeldForks() int {
	n := 0
	for _, f := range s.Forks {
		if f.Owner != nil {
			n++
		}
	}
	return n
}

// TotalMeals sums meals over every seat.
func (s Snapshot) TotalMeals() int64 {
	var n int64
	for _, p := range s.Philosophers {
		n += p.Meals
	}
	return n
}
