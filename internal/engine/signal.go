package engine

import (
	"context"
	"sync"
	"time"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
)

// ChangeSignal wakes every waiter whenever any fork changes hands.
//
// It is a generation channel: Broadcast closes the current channel and
// installs a fresh one. A waiter must call Watch before re-testing its
// condition, so a broadcast that lands between the test and the wait is
// never lost. All waiters wake on every broadcast regardless of which fork
// they want; with a large table per-fork queues would cut the herd.
type ChangeSignal struct {
	mu      sync.Mutex
	ch      chan struct{}
	metrics *metrics.Collector
}

// NewChangeSignal returns a signal with no pending broadcast.
func NewChangeSignal(m *metrics.Collector) *ChangeSignal {
	return &ChangeSignal{ch: make(chan struct{}), metrics: m}
}

// Watch returns a channel closed by the next Broadcast.
func (s *ChangeSignal) Watch() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Broadcast wakes everybody currently watching.
func (s *ChangeSignal) Broadcast() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
	s.metrics.RecordBroadcast()
}

// Wait blocks until watch is closed, timeout elapses or ctx is done.
// It returns ctx.Err() only when the caller should stop; a wake or a timeout
// both return nil and the caller re-tests its condition.
func (s *ChangeSignal) Wait(ctx context.Context, watch <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-watch:
		s.metrics.RecordWakeup()
		return nil
	case <-timer.C:
		return nil
	}
}
