package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
)

// Source is anything that can photograph the table. *Engine implements it.
type Source interface {
	Snapshot() Snapshot
}

// Ticker photographs the table at a fixed interval and hands every snapshot
// to a callback. It does NOT know about websockets or HTTP.
type Ticker struct {
	source     Source
	interval   time.Duration
	onTick     func(Snapshot)
	logger     *logger.Logger
	tickNumber atomic.Int64
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewTicker creates a snapshot ticker.
func NewTicker(source Source, interval time.Duration, onTick func(Snapshot), log *logger.Logger) *Ticker {
	if log == nil {
		log = logger.Nop()
	}
	return &Ticker{
		source:   source,
		interval: interval,
		onTick:   onTick,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the snapshot loop. Call in a goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Infof("Snapshot ticker started (every %v).", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Snapshot ticker stopped by context.")
			return
		case <-t.stopChan:
			t.logger.Info("Snapshot ticker stopped manually.")
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

// Stop gracefully stops the ticker. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Ticks returns how many snapshots have been delivered.
func (t *Ticker) Ticks() int64 { return t.tickNumber.Load() }

func (t *Ticker) tick() {
	t.tickNumber.Add(1)
	t.onTick(t.source.Snapshot())
}
