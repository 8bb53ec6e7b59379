package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/MRamiBalles/DiningPhilosophers/server/internal/domain/philosopher"
	"github.com/MRamiBalles/DiningPhilosophers/server/internal/events"
)

// seat is one philosopher's goroutine state. Only its own goroutine writes state.
type seat struct {
	id          int
	left, right int
	state       *atomic.Uint32
	meals       *atomic.Int64
	rng         *rand.Rand
	e           *Engine
}

func (p *seat) setState(s philosopher.State) {
	old := philosopher.State(p.state.Swap(uint32(s)))
	if old == s {
		return
	}
	if p.e.log.DebugEnabled() {
		p.e.log.Debugf("philosopher %d: %s -> %s", p.id, old, s)
	}
	p.e.emit(events.TableEvent{
		Type:    events.EventTypeStateChanged,
		ActorID: p.id,
		Payload: events.StateChangedPayload{From: old, To: s},
	})
}

// wait sleeps a jittered multiple of the delay held in cell.
func (p *seat) wait(ctx context.Context, cell func() int64) bool {
	return sleep(ctx, jitter(p.rng, cell()))
}

// acquire blocks until this philosopher owns slot or ctx ends.
func (p *seat) acquire(ctx context.Context, slot int) bool {
	for {
		watch := p.e.signal.Watch()
		if p.e.forks.TryAcquire(slot, p.id) {
			return true
		}
		if err := p.e.signal.Wait(ctx, watch, p.e.waitTimeout); err != nil {
			return false
		}
	}
}

// backoff puts slot back on the table after failing to get wanted.
func (p *seat) backoff(ctx context.Context, slot, wanted int) bool {
	p.setState(philosopher.PuttingDownForks)
	if !p.wait(ctx, p.e.timing.PutDownMs) {
		return false
	}
	p.e.forks.Release(slot, p.id)
	p.e.metrics.RecordBackoff()
	p.e.emit(events.TableEvent{
		Type:    events.EventTypeBackoff,
		ActorID: p.id,
		Payload: events.BackoffPayload{Released: slot, Wanted: wanted},
	})
	return true
}

// acquireBoth runs until the philosopher holds both forks. heldLeft means the
// left fork is already owned on entry. It returns false only when stopping.
//
// Holding one fork while blocking on the other is never allowed: a failed
// second pickup always puts the first fork back before waiting. After two
// failures in a row the philosopher starts over from the left fork without
// thinking again.
func (p *seat) acquireBoth(ctx context.Context, heldLeft bool) bool {
	for {
		if !heldLeft {
			p.setState(philosopher.WaitingForLeftFork)
			if !p.acquire(ctx, p.left) {
				return false
			}
		}
		heldLeft = false

		p.setState(philosopher.PickingUpLeftFork)
		if !p.wait(ctx, p.e.timing.PickUpMs) {
			return false
		}

		if p.e.forks.TryAcquire(p.right, p.id) {
			p.setState(philosopher.PickingUpRightFork)
			return p.wait(ctx, p.e.timing.PickUpMs)
		}

		if !p.backoff(ctx, p.left, p.right) {
			return false
		}

		p.setState(philosopher.WaitingForRightFork)
		if !p.acquire(ctx, p.right) {
			return false
		}
		p.setState(philosopher.PickingUpRightFork)
		if !p.wait(ctx, p.e.timing.PickUpMs) {
			return false
		}

		if p.e.forks.TryAcquire(p.left, p.id) {
			p.setState(philosopher.PickingUpLeftFork)
			return p.wait(ctx, p.e.timing.PickUpMs)
		}

		if !p.backoff(ctx, p.right, p.left) {
			return false
		}
	}
}

func (p *seat) eat(ctx context.Context) bool {
	p.checkOwnership()
	p.setState(philosopher.Eating)
	if !p.wait(ctx, p.e.timing.EatingMs) {
		return false
	}
	meals := p.meals.Add(1)
	p.e.metrics.RecordMeal()
	p.e.emit(events.TableEvent{
		Type:    events.EventTypeMealFinished,
		ActorID: p.id,
		Payload: events.MealPayload{Meals: meals},
	})
	return true
}

func (p *seat) putDown(ctx context.Context) bool {
	p.setState(philosopher.PuttingDownForks)
	if !p.wait(ctx, p.e.timing.PutDownMs) {
		return false
	}
	p.e.forks.ReleasePair(p.left, p.right, p.id)
	return true
}

func (p *seat) think(ctx context.Context) bool {
	p.setState(philosopher.Thinking)
	return p.wait(ctx, p.e.timing.ThinkingMs)
}

// checkOwnership panics if the table disagrees about who holds our forks.
// The panic is turned into a fatal engine error by run.
func (p *seat) checkOwnership() {
	for _, slot := range []int{p.left, p.right} {
		if owner, ok := p.e.forks.Owner(slot); !ok || owner != p.id {
			panic(fmt.Sprintf("philosopher %d about to eat without fork %d (owner=%d held=%v)", p.id, slot, owner, ok))
		}
	}
}

// run is the philosopher goroutine. It never returns on its own; it stops
// when ctx is cancelled and always leaves its forks on the table.
func (p *seat) run(ctx context.Context, heldLeft bool) {
	defer p.e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.e.fail(fmt.Errorf("%w: philosopher %d: %v", ErrInternal, p.id, r))
		}
		p.e.forks.ReleasePair(p.left, p.right, p.id)
	}()

	if !heldLeft && !p.think(ctx) {
		return
	}
	for {
		if !p.acquireBoth(ctx, heldLeft) {
			return
		}
		heldLeft = false
		if !p.eat(ctx) || !p.putDown(ctx) || !p.think(ctx) {
			return
		}
	}
}
