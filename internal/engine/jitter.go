package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

// jitter draws a wait around base milliseconds: half = base/2+1, result is
// uniform in [half, 2*half). Spreading the sleeps keeps the table out of
// lockstep, where every philosopher grabs its left fork at the same instant.
func jitter(r *rand.Rand, baseMs int64) time.Duration {
	if baseMs < MinDelay {
		baseMs = MinDelay
	}
	half := baseMs/2 + 1
	return millis(half + r.Int64N(half))
}

// sleep waits for d unless ctx ends first. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// newRNG seeds a PCG source per philosopher so seats do not share jitter.
func newRNG(seed uint64, seat int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(seat)+1))
}
