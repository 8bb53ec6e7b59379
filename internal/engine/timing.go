package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Advisory slider range for the four delays, in milliseconds.
// Only the lower bound is enforced.
const (
	MinDelay int64 = 1
	MaxDelay int64 = 10000
)

// ErrInvalidDuration is returned when a delay is not a positive number of milliseconds.
var ErrInvalidDuration = errors.New("engine: delay must be a positive number of milliseconds")

// Durations is a plain copy of the four delays in milliseconds.
type Durations struct {
	PickUpMs   int64 `json:"pickup_ms"`
	PutDownMs  int64 `json:"putdown_ms"`
	EatingMs   int64 `json:"eating_ms"`
	ThinkingMs int64 `json:"thinking_ms"`
}

// Validate reports whether every delay is usable.
func (d Durations) Validate() error {
	for _, f := range []struct {
		name string
		ms   int64
	}{
		{"pickup", d.PickUpMs},
		{"putdown", d.PutDownMs},
		{"eating", d.EatingMs},
		{"thinking", d.ThinkingMs},
	} {
		if f.ms < MinDelay {
			return fmt.Errorf("%w: %s=%d", ErrInvalidDuration, f.name, f.ms)
		}
	}
	return nil
}

func (d Durations) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pickup=%dms putdown=%dms eating=%dms thinking=%dms", d.PickUpMs, d.PutDownMs, d.EatingMs, d.ThinkingMs)
	return b.String()
}

// Built-in paces.
var (
	DefaultDurations = Durations{PickUpMs: 1000, PutDownMs: 1000, EatingMs: 5000, ThinkingMs: 5000}
	FastDurations    = Durations{PickUpMs: 1, PutDownMs: 1, EatingMs: 1, ThinkingMs: 1}
	MediumDurations  = Durations{PickUpMs: 500, PutDownMs: 500, EatingMs: 3000, ThinkingMs: 6000}
	SlowDurations    = Durations{PickUpMs: 5000, PutDownMs: 5000, EatingMs: 10000, ThinkingMs: 10000}
)

// BuiltinPresets maps preset names to their delays.
func BuiltinPresets() map[string]Durations {
	return map[string]Durations{
		"fast":   FastDurations,
		"medium": MediumDurations,
		"slow":   SlowDurations,
	}
}

// Timing holds the four delays as independent atomic cells.
// Philosophers read each cell on its own, so a reader may see a mix of old
// and new values while an update is in flight. That only skews one sleep.
type Timing struct {
	pickUp   atomic.Int64
	putDown  atomic.Int64
	eating   atomic.Int64
	thinking atomic.Int64

	onChange func(Durations)
}

// NewTiming returns timing cells initialised to d. d must be valid.
func NewTiming(d Durations) *Timing {
	t := &Timing{}
	t.store(d)
	return t
}

func (t *Timing) store(d Durations) {
	t.pickUp.Store(d.PickUpMs)
	t.putDown.Store(d.PutDownMs)
	t.eating.Store(d.EatingMs)
	t.thinking.Store(d.ThinkingMs)
}

func (t *Timing) changed() {
	if t.onChange != nil {
		t.onChange(t.Load())
	}
}

func (t *Timing) PickUpMs() int64   { return t.pickUp.Load() }
func (t *Timing) PutDownMs() int64  { return t.putDown.Load() }
func (t *Timing) EatingMs() int64   { return t.eating.Load() }
func (t *Timing) ThinkingMs() int64 { return t.thinking.Load() }

// Load copies all four cells. The copy is not a consistent cut.
func (t *Timing) Load() Durations {
	return Durations{
		PickUpMs:   t.pickUp.Load(),
		PutDownMs:  t.putDown.Load(),
		EatingMs:   t.eating.Load(),
		ThinkingMs: t.thinking.Load(),
	}
}

func (t *Timing) set(cell *atomic.Int64, name string, ms int64) error {
	if ms < MinDelay {
		return fmt.Errorf("%w: %s=%d", ErrInvalidDuration, name, ms)
	}
	cell.Store(ms)
	t.changed()
	return nil
}

func (t *Timing) SetPickUp(ms int64) error   { return t.set(&t.pickUp, "pickup", ms) }
func (t *Timing) SetPutDown(ms int64) error  { return t.set(&t.putDown, "putdown", ms) }
func (t *Timing) SetEating(ms int64) error   { return t.set(&t.eating, "eating", ms) }
func (t *Timing) SetThinking(ms int64) error { return t.set(&t.thinking, "thinking", ms) }

// Apply replaces all four delays. Nothing is stored unless all are valid.
func (t *Timing) Apply(d Durations) error {
	if err := d.Validate(); err != nil {
		return err
	}
	t.store(d)
	t.changed()
	return nil
}

// Patch applies only the non-zero fields of d. Negative fields are rejected
// and nothing is stored. Cells not named in d are left untouched, so patches
// to different delays never undo each other.
func (t *Timing) Patch(d Durations) error {
	fields := []struct {
		name string
		ms   int64
		cell *atomic.Int64
	}{
		{"pickup", d.PickUpMs, &t.pickUp},
		{"putdown", d.PutDownMs, &t.putDown},
		{"eating", d.EatingMs, &t.eating},
		{"thinking", d.ThinkingMs, &t.thinking},
	}
	touched := false
	for _, f := range fields {
		if f.ms == 0 {
			continue
		}
		if f.ms < MinDelay {
			return fmt.Errorf("%w: %s=%d", ErrInvalidDuration, f.name, f.ms)
		}
		touched = true
	}
	if !touched {
		return nil
	}
	for _, f := range fields {
		if f.ms != 0 {
			f.cell.Store(f.ms)
		}
	}
	t.changed()
	return nil
}

func millis(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
