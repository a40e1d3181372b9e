package worker

import (
	"context"
	"sync"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// registry tracks the leases this process currently holds. Each entry
// maps an item id to the cancel function for its execution context. All
// mutation goes through start and stop so an entry can never outlive its
// lease.
type registry struct {
	mu     sync.Mutex
	leases map[uint64]context.CancelFunc
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newRegistry() *registry {
	return &registry{
		leases: make(map[uint64]context.CancelFunc),
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// start records a held lease. Returns false if the id is already held,
// which indicates a protocol violation upstream.
func (r *registry) start(id uint64, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.leases[id]; exists {
		return false
	}
	r.leases[id] = cancel
	return true
}

// stop cancels and removes a held lease. Safe to call more than once.
func (r *registry) stop(id uint64) {
	r.mu.Lock()
	cancel, exists := r.leases[id]
	delete(r.leases, id)
	r.mu.Unlock()
	if exists {
		cancel()
	}
}

// stopAll cancels every held lease, abandoning the items to the reaper.
func (r *registry) stopAll() {
	r.mu.Lock()
	leases := r.leases
	r.leases = make(map[uint64]context.CancelFunc)
	r.mu.Unlock()
	for _, cancel := range leases {
		cancel()
	}
}

// size returns the number of held leases.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leases)
}
