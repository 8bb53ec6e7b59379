package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/domain/philosopher"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/logger"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/platform/metrics"
)

// DefaultWaitTimeout bounds a single wait on the change signal, so a
// philosopher re-tests its fork at least this often even without a broadcast.
const DefaultWaitTimeout = 100 * time.Millisecond

var (
	ErrTooFewPhilosophers = errors.New("engine: at least 2 philosophers are required")
	ErrOutOfRange         = errors.New("engine: index out of range")
	ErrInternal           = errors.New("engine: internal failure")
)

// Option configures an Engine.
type Option func(*Engine)

// WithTiming sets the initial delays. Invalid delays make New fail.
func WithTiming(d Durations) Option {
	return func(e *Engine) { e.initial = d }
}

// WithSeed makes the jitter reproducible per seat. Zero picks a random seed.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithWaitTimeout bounds each wait on the change signal.
func WithWaitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.waitTimeout = d
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithEvents publishes table events to sink.
func WithEvents(sink events.Sink) Option {
	return func(e *Engine) { e.events = sink }
}

// WithMetrics records table counters in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is the running table.
type Engine struct {
	count  int
	names  []string
	states []atomic.Uint32
	meals  []atomic.Int64

	forks  *ForkTable
	signal *ChangeSignal
	timing *Timing

	initial     Durations
	seed        uint64
	waitTimeout time.Duration
	log         *logger.Logger
	events      events.Sink
	metrics     *metrics.Collector

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	stopped atomic.Bool

	errMu sync.Mutex
	err   error
}

// New seats count philosophers and starts one goroutine each immediately.
func New(count int, opts ...Option) (*Engine, error) {
	e, err := newEngine(count, opts...)
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		e.spawn(i, false)
	}
	e.watchDone()
	e.log.Infof("Table laid for %d philosophers (%s)", count, e.timing.Load())
	return e, nil
}

// newEngine builds the table without starting anybody.
func newEngine(count int, opts ...Option) (*Engine, error) {
	if count < 2 {
		return nil, fmt.Errorf("%w (got %d)", ErrTooFewPhilosophers, count)
	}
	e := &Engine{
		count:       count,
		names:       philosopher.Names(count),
		states:      make([]atomic.Uint32, count),
		meals:       make([]atomic.Int64, count),
		initial:     DefaultDurations,
		waitTimeout: DefaultWaitTimeout,
		log:         logger.Nop(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.initial.Validate(); err != nil {
		return nil, err
	}
	if e.seed == 0 {
		e.seed = uint64(time.Now().UnixNano())
	}

	e.signal = NewChangeSignal(e.metrics)
	e.forks = NewForkTable(count, e.signal, e.metrics)
	e.timing = NewTiming(e.initial)
	e.timing.onChange = e.timingChanged
	for i := range e.states {
		e.states[i].Store(uint32(philosopher.Thinking))
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

func (e *Engine) spawn(i int, heldLeft bool) {
	p := &seat{
		id:    i,
		left:  philosopher.LeftFork(i, e.count),
		right: philosopher.RightFork(i, e.count),
		state: &e.states[i],
		meals: &e.meals[i],
		rng:   newRNG(e.seed, i),
		e:     e,
	}
	e.wg.Add(1)
	go p.run(e.ctx, heldLeft)
}

func (e *Engine) watchDone() {
	go func() {
		e.wg.Wait()
		e.emit(events.TableEvent{Type: events.EventTypeEngineStopped, ActorID: events.SystemActor})
		close(e.done)
	}()
}

func (e *Engine) emit(ev events.TableEvent) {
	if e.events != nil {
		e.events.Append(ev)
	}
}

func (e *Engine) timingChanged(d Durations) {
	e.metrics.RecordTimingChange()
	e.log.Event("TIMING_CHANGED", "config", d.String())
	e.emit(events.TableEvent{
		Type:    events.EventTypeTimingChanged,
		ActorID: events.SystemActor,
		Payload: d,
	})
}

// fail records the first internal failure and stops the whole table.
// Shared fork state can no longer be trusted once a philosopher has panicked.
func (e *Engine) fail(err error) {
	e.errMu.Lock()
	first := e.err == nil
	if first {
		e.err = err
	}
	e.errMu.Unlock()
	if !first {
		return
	}
	e.log.Error("Simulation halted: " + err.Error())
	e.emit(events.TableEvent{
		Type:    events.EventTypeEngineFailed,
		ActorID: events.SystemActor,
		Payload: err.Error(),
	})
	e.Stop()
}

// Err returns the internal failure that halted the table, if any.
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// Count returns the number of philosophers (and forks).
func (e *Engine) Count() int { return e.count }

// Names returns the display name of every seat.
func (e *Engine) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Timing exposes the live delay cells. Setters take effect on the next sleep.
func (e *Engine) Timing() *Timing { return e.timing }

// State returns philosopher id's current state without blocking it.
func (e *Engine) State(id int) (philosopher.State, error) {
	if id < 0 || id >= e.count {
		return 0, fmt.Errorf("%w: philosopher %d of %d", ErrOutOfRange, id, e.count)
	}
	return philosopher.State(e.states[id].Load()), nil
}

// Meals returns how many meals philosopher id has finished.
func (e *Engine) Meals(id int) (int64, error) {
	if id < 0 || id >= e.count {
		return 0, fmt.Errorf("%w: philosopher %d of %d", ErrOutOfRange, id, e.count)
	}
	return e.meals[id].Load(), nil
}

// ForkOwner returns who holds fork id. held is false when the fork is on the table.
func (e *Engine) ForkOwner(id int) (owner int, held bool, err error) {
	if id < 0 || id >= e.count {
		return 0, false, fmt.Errorf("%w: fork %d of %d", ErrOutOfRange, id, e.count)
	}
	owner, held = e.forks.Owner(id)
	return owner, held, nil
}

// Done is closed once every philosopher goroutine has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Stop asks every philosopher to leave the table. It does not wait.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.log.Info("Stopping table...")
	e.cancel()
}

// Wait blocks until every philosopher goroutine has returned. Without a
// prior Stop (or an internal failure) it blocks forever.
func (e *Engine) Wait() {
	<-e.done
}

// Shutdown stops the table and waits for it, giving up when ctx ends.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()
	select {
	case <-e.done:
		e.log.Info("All philosophers have left the table.")
		return e.Err()
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}
