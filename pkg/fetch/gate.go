package fetch

import (
	"context"
	"sync"
	"time"
)

// Gate enforces the politeness contract for the single upstream host: at
// most maxInFlight requests concurrently, and at least minInterval between
// consecutive dispatches, globally across all callers.
type Gate struct {
	slots        chan struct{}
	minInterval  time.Duration
	mu           sync.Mutex
	lastDispatch time.Time
}

// NewGate creates a Gate allowing maxInFlight concurrent holders with at
// least minInterval between consecutive grants.
func NewGate(maxInFlight int, minInterval time.Duration) *Gate {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	return &Gate{
		slots:       make(chan struct{}, maxInFlight),
		minInterval: minInterval,
	}
}

// Acquire blocks until a slot is free and the minimum interval since the
// last dispatch has elapsed. Returns the context error if ctx is canceled
// while waiting; the slot is not leaked in that case.
func (gate *Gate) Acquire(ctx context.Context) error {
	select {
	case gate.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Another holder may stamp lastDispatch while this one sleeps, so the
	// wait is recomputed until the interval actually holds.
	for {
		gate.mu.Lock()
		waitDuration := gate.minInterval - time.Since(gate.lastDispatch)
		if waitDuration <= 0 {
			gate.lastDispatch = time.Now()
			gate.mu.Unlock()
			return nil
		}
		gate.mu.Unlock()

		pacingTimer := time.NewTimer(waitDuration)
		select {
		case <-pacingTimer.C:
		case <-ctx.Done():
			pacingTimer.Stop()
			<-gate.slots
			return ctx.Err()
		}
	}
}

// Release frees the slot held by a completed request. Must be called exactly
// once per successful Acquire.
func (gate *Gate) Release() {
	<-gate.slots
}
