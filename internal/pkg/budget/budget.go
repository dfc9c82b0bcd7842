// Package budget implements the judger's global memory byte budget: an
// async counting semaphore that every sandboxed run must reserve bytes
// from before it may proceed, so no amount of concurrent judging can push
// the host over a configured memory ceiling.
package budget

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Budget is a process-wide byte budget backed by a weighted semaphore.
// Outstanding reservations never exceed Capacity; releasing a reservation
// is idempotent and wait-free. inUse mirrors the semaphore's held weight
// so Available can be read without blocking on or perturbing the
// semaphore itself.
type Budget struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
}

// New creates a Budget with the given byte capacity.
func New(capacity uint64) *Budget {
	return &Budget{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Capacity returns the configured maximum number of bytes.
func (b *Budget) Capacity() uint64 {
	return uint64(b.capacity)
}

// Available reports the number of bytes not currently held by any
// reservation. Safe to call concurrently with Acquire/Release.
func (b *Budget) Available() uint64 {
	return uint64(b.capacity - b.inUse.Load())
}

// Reservation is a scoped claim on n bytes of the budget. Release must be
// called exactly once; calling it more than once past the first is a
// no-op.
type Reservation struct {
	budget *Budget
	n      int64
	freed  atomic.Bool
}

// Bytes returns the number of bytes held by this reservation.
func (r *Reservation) Bytes() uint64 {
	return uint64(r.n)
}

// Release returns the reservation's bytes to the budget. Safe to call
// more than once and safe to call on a nil Reservation.
func (r *Reservation) Release() {
	if r == nil {
		return
	}
	if r.freed.CompareAndSwap(false, true) {
		r.budget.inUse.Add(-r.n)
		r.budget.sem.Release(r.n)
	}
}

// ErrOutOfMemory is returned when the budget cannot satisfy a request,
// immediately (TryAcquire) or ever (a request larger than capacity).
var ErrOutOfMemory = fmt.Errorf("budget: out of memory")

// TryAcquire reserves n bytes without blocking, or returns ErrOutOfMemory
// if the budget does not currently have n bytes available.
func (b *Budget) TryAcquire(n uint64) (*Reservation, error) {
	amount := int64(n)
	if amount > b.capacity {
		return nil, fmt.Errorf("%w: requested %d exceeds total capacity %d", ErrOutOfMemory, n, b.capacity)
	}
	if !b.sem.TryAcquire(amount) {
		return nil, ErrOutOfMemory
	}
	b.inUse.Add(amount)
	return &Reservation{budget: b, n: amount}, nil
}

// Acquire reserves n bytes, blocking until they are available or ctx is
// done. No fairness guarantee is made across waiters beyond "no permit is
// ever lost".
func (b *Budget) Acquire(ctx context.Context, n uint64) (*Reservation, error) {
	amount := int64(n)
	if amount > b.capacity {
		return nil, fmt.Errorf("%w: requested %d exceeds total capacity %d", ErrOutOfMemory, n, b.capacity)
	}
	if err := b.sem.Acquire(ctx, amount); err != nil {
		return nil, err
	}
	b.inUse.Add(amount)
	return &Reservation{budget: b, n: amount}, nil
}
