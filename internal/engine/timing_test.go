package engine

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimingSetters(t *testing.T) {
	tm := NewTiming(DefaultDurations)
	var changes []Durations
	tm.onChange = func(d Durations) { changes = append(changes, d) }

	if err := tm.SetEating(42); err != nil {
		t.Fatalf("SetEating: %v", err)
	}
	if tm.EatingMs() != 42 {
		t.Errorf("Expected eating 42, got %d", tm.EatingMs())
	}
	if err := tm.SetPickUp(0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("Expected ErrInvalidDuration, got %v", err)
	}
	if tm.PickUpMs() != DefaultDurations.PickUpMs {
		t.Error("Rejected value must not be stored")
	}
	if len(changes) != 1 || changes[0].EatingMs != 42 {
		t.Errorf("Expected one change notification, got %+v", changes)
	}
}

func TestTimingApplyAndPatch(t *testing.T) {
	tm := NewTiming(DefaultDurations)

	bad := SlowDurations
	bad.ThinkingMs = -1
	if err := tm.Apply(bad); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("Expected ErrInvalidDuration, got %v", err)
	}
	if tm.Load() != DefaultDurations {
		t.Error("Apply must be all-or-nothing")
	}

	if err := tm.Apply(MediumDurations); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tm.Load() != MediumDurations {
		t.Errorf("Expected medium pace, got %v", tm.Load())
	}

	if err := tm.Patch(Durations{ThinkingMs: 7}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	want := MediumDurations
	want.ThinkingMs = 7
	if tm.Load() != want {
		t.Errorf("Expected %v, got %v", want, tm.Load())
	}
	if err := tm.Patch(Durations{EatingMs: -3}); err == nil {
		t.Error("Patch should reject negative delays")
	}
}

func TestPatchOnlyTouchesNamedCells(t *testing.T) {
	tm := NewTiming(DefaultDurations)
	var changes int
	tm.onChange = func(Durations) { changes++ }

	if err := tm.Patch(Durations{}); err != nil {
		t.Fatalf("empty Patch: %v", err)
	}
	if changes != 0 {
		t.Errorf("Empty patch should not notify, got %d notifications", changes)
	}
	if err := tm.Patch(Durations{PickUpMs: 3, EatingMs: -1}); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("Expected ErrInvalidDuration, got %v", err)
	}
	if tm.Load() != DefaultDurations {
		t.Errorf("Rejected patch stored something: %v", tm.Load())
	}
	if err := tm.Patch(Durations{PickUpMs: 3, EatingMs: 4}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if changes != 1 {
		t.Errorf("Expected one notification for a two-field patch, got %d", changes)
	}
}

// Each goroutine owns one delay and patches only that one. No patch may
// ever overwrite a delay it did not name.
func TestConcurrentPatchesDoNotLoseUpdates(t *testing.T) {
	tm := NewTiming(DefaultDurations)
	const rounds = 2000

	cells := []struct {
		patch func(ms int64) Durations
		read  func() int64
	}{
		{func(ms int64) Durations { return Durations{PickUpMs: ms} }, tm.PickUpMs},
		{func(ms int64) Durations { return Durations{PutDownMs: ms} }, tm.PutDownMs},
		{func(ms int64) Durations { return Durations{EatingMs: ms} }, tm.EatingMs},
		{func(ms int64) Durations { return Durations{ThinkingMs: ms} }, tm.ThinkingMs},
	}

	var lost atomic.Int64
	var wg sync.WaitGroup
	for _, c := range cells {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ms := int64(1); ms <= rounds; ms++ {
				if err := tm.Patch(c.patch(ms)); err != nil {
					t.Errorf("Patch: %v", err)
					return
				}
				runtime.Gosched()
				if got := c.read(); got != ms {
					lost.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if n := lost.Load(); n != 0 {
		t.Errorf("%d patches were undone by a patch to another delay", n)
	}
	want := Durations{PickUpMs: rounds, PutDownMs: rounds, EatingMs: rounds, ThinkingMs: rounds}
	if got := tm.Load(); got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestBuiltinPresets(t *testing.T) {
	presets := BuiltinPresets()
	for _, name := range []string{"fast", "medium", "slow"} {
		d, ok := presets[name]
		if !ok {
			t.Fatalf("Missing preset %s", name)
		}
		if err := d.Validate(); err != nil {
			t.Errorf("Preset %s invalid: %v", name, err)
		}
	}
	if presets["slow"].EatingMs != 10000 {
		t.Errorf("Unexpected slow eating time: %d", presets["slow"].EatingMs)
	}
}

func TestJitterRange(t *testing.T) {
	r := newRNG(1, 0)
	tests := []struct {
		base     int64
		min, max time.Duration
	}{
		{1, 1 * time.Millisecond, 1 * time.Millisecond},
		{0, 1 * time.Millisecond, 1 * time.Millisecond},
		{10, 6 * time.Millisecond, 11 * time.Millisecond},
		{1000, 501 * time.Millisecond, 1001 * time.Millisecond},
	}
	for _, tt := range tests {
		for i := 0; i < 500; i++ {
			d := jitter(r, tt.base)
			if d < tt.min || d > tt.max {
				t.Fatalf("jitter(%d) = %v, want within [%v, %v]", tt.base, d, tt.min, tt.max)
			}
		}
	}
}
