package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Throttle bounds one class of concurrent in-flight work (tile loads,
// subtree loads, or raster-overlay loads, §5: "Three independent counters").
// Backed by a weighted semaphore rather than a hand-rolled counter+mutex,
// matching the pack's preference for golang.org/x/sync primitives. A
// parallel atomic counter tracks InFlight since semaphore.Weighted does not
// expose its current count.
type Throttle struct {
	sem      *semaphore.Weighted
	limit    int64
	inFlight atomic.Int64
}

func NewThrottle(limit int) *Throttle {
	return &Throttle{sem: semaphore.NewWeighted(int64(limit)), limit: int64(limit)}
}

// TryAcquire attempts to reserve one slot without blocking, returning false
// if the limit is already reached. The dispatcher uses this to stop a pass
// once "the global counter reaches the limit" (§5).
func (t *Throttle) TryAcquire() bool {
	if t.sem.TryAcquire(1) {
		t.inFlight.Add(1)
		return true
	}
	return false
}

// Release frees one slot, called when a load completes.
func (t *Throttle) Release() {
	t.sem.Release(1)
	t.inFlight.Add(-1)
}

// InFlight reports the number of slots currently reserved.
func (t *Throttle) InFlight() int64 { return t.inFlight.Load() }

// Limit reports the throttle's configured capacity.
func (t *Throttle) Limit() int64 { return t.limit }

// AcquireBlocking reserves a slot, blocking until one is free or ctx is done.
func (t *Throttle) AcquireBlocking(ctx context.Context) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	t.inFlight.Add(1)
	return nil
}
