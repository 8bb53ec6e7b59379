package engine

import (
	"sync/atomic"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
)

// Free marks a fork slot nobody owns.
const Free int64 = -1

// ForkTable holds one ownership slot per fork.
// Slot indices must be in range; out-of-range indices panic.
type ForkTable struct {
	slots   []atomic.Int64
	signal  *ChangeSignal
	metrics *metrics.Collector
}

// NewForkTable creates count free forks that broadcast on signal when released.
func NewForkTable(count int, signal *ChangeSignal, m *metrics.Collector) *ForkTable {
	t := &ForkTable{
		slots:   make([]atomic.Int64, count),
		signal:  signal,
		metrics: m,
	}
	for i := range t.slots {
		t.slots[i].Store(Free)
	}
	return t
}

// Len returns the number of forks.
func (t *ForkTable) Len() int { return len(t.slots) }

// TryAcquire moves a free fork to owner id. It reports whether it won the fork;
// an owned fork is left untouched.
func (t *ForkTable) TryAcquire(slot, id int) bool {
	ok := t.slots[slot].CompareAndSwap(Free, int64(id))
	t.metrics.RecordAcquire(ok)
	return ok
}

// Release puts the fork back on the table if, and only if, id owns it, then
// broadcasts the change. Releasing a free fork or someone else's fork is a
// no-op and returns false.
func (t *ForkTable) Release(slot, id int) bool {
	if !t.release(slot, id) {
		return false
	}
	t.metrics.RecordRelease(1)
	t.signal.Broadcast()
	return true
}

// ReleasePair releases both forks owned by id with a single broadcast.
// It returns how many forks were actually released.
func (t *ForkTable) ReleasePair(a, b, id int) int {
	n := 0
	if t.release(a, id) {
		n++
	}
	if b != a && t.release(b, id) {
		n++
	}
	if n > 0 {
		t.metrics.RecordRelease(n)
		t.signal.Broadcast()
	}
	return n
}

func (t *ForkTable) release(slot, id int) bool {
	return t.slots[slot].CompareAndSwap(int64(id), Free)
}

// Owner returns the index of the philosopher holding the fork, if any.
func (t *ForkTable) Owner(slot int) (int, bool) {
	v := t.slots[slot].Load()
	if v == Free {
		return 0, false
	}
	return int(v), true
}

// Held counts forks currently owned by someone.
func (t *ForkTable) Held() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].Load() != Free {
			n++
		}
	}
	return n
}
