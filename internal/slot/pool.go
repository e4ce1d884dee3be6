// Package slot manages the fixed pool of execution slots handed to the
// engine by the cluster scheduler.
//
// A slot is one unit of allocable compute capacity (one processing core).
// The pool is the only shared mutable resource in the engine: jobs acquire a
// Lease before launching their solver process and release it when the
// process exits.
package slot

import (
	"fmt"
	"sort"
	"sync"
)

// Width computes how many jobs may run concurrently per wave.
//
// It is floor(totalSlots / slotsPerJob) and is always >= 1 for valid input.
// Invalid input (a per-job requirement that could never be satisfied) is a
// configuration error: no job could ever run.
func Width(totalSlots, slotsPerJob int) (int, error) {
	if slotsPerJob <= 0 {
		return 0, fmt.Errorf("slots per job must be positive (got %d)", slotsPerJob)
	}
	if slotsPerJob > totalSlots {
		return 0, fmt.Errorf("slots per job (%d) exceeds total slots (%d)", slotsPerJob, totalSlots)
	}
	return totalSlots / slotsPerJob, nil
}

// Lease is a job-scoped subset of slots, exclusively owned by one running
// job for its lifetime. IDs are sorted ascending and never shared between
// concurrent leases.
type Lease struct {
	IDs []int
}

// Size returns the number of slots in the lease.
func (l Lease) Size() int { return len(l.IDs) }

// Pool is a fixed-capacity set of slot IDs 0..total-1.
//
// Acquire hands out the lowest-numbered free slots so that repeated runs of
// the same configuration produce identical leases. All methods are safe for
// concurrent use.
type Pool struct {
	mu   sync.Mutex
	free []int // sorted ascending
	size int
}

// NewPool materializes a pool of `total` slots with IDs 0..total-1.
func NewPool(total int) (*Pool, error) {
	if total <= 0 {
		return nil, fmt.Errorf("pool size must be positive (got %d)", total)
	}
	free := make([]int, total)
	for i := range free {
		free[i] = i
	}
	return &Pool{free: free, size: total}, nil
}

// Size returns the total capacity of the pool.
func (p *Pool) Size() int { return p.size }

// Free returns the number of currently unleased slots.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Acquire removes the lowest-numbered n free slots from the pool and returns
// them as a Lease. It fails if fewer than n slots are free; the wave
// scheduler sizes waves so this cannot happen during normal operation.
func (p *Pool) Acquire(n int) (Lease, error) {
	if n <= 0 {
		return Lease{}, fmt.Errorf("lease size must be positive (got %d)", n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > len(p.free) {
		return Lease{}, fmt.Errorf("insufficient free slots: need %d, have %d", n, len(p.free))
	}
	ids := make([]int, n)
	copy(ids, p.free[:n])
	p.free = p.free[n:]
	return Lease{IDs: ids}, nil
}

// Release returns a lease's slots to the pool. Releasing keeps the free list
// sorted so the first-N rule stays deterministic.
func (p *Pool) Release(l Lease) {
	if len(l.IDs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, l.IDs...)
	sort.Ints(p.free)
}
