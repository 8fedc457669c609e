// Package scheduler runs the worker loop that drains the pending-job queue
// and drives each job through the synthesis pipeline.
package scheduler

import (
	"sync"
	"time"
)

// LeaseSet is the in-process set of processing leases. At most one unexpired
// lease exists per job id at any time; that is the sole concurrency guard
// between worker ticks. Each lease carries an expiry so a crashed attempt
// cannot permanently strand a job behind a phantom lease.
type LeaseSet struct {
	mu     sync.Mutex
	ttl    time.Duration
	leases map[string]time.Time
}

// NewLeaseSet creates a lease set with the given lease lifetime.
func NewLeaseSet(ttl time.Duration) *LeaseSet {
	return &LeaseSet{
		ttl:    ttl,
		leases: make(map[string]time.Time),
	}
}

// Acquire claims the job if it holds no unexpired lease, atomically. An
// expired lease is reclaimable.
func (l *LeaseSet) Acquire(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, held := l.leases[jobID]
	if held && time.Now().Before(expiry) {
		return false
	}

	l.leases[jobID] = time.Now().Add(l.ttl)

	return true
}

// Release frees the job's lease.
func (l *LeaseSet) Release(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.leases, jobID)
}

// Held reports whether the job currently holds an unexpired lease.
func (l *LeaseSet) Held(jobID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, held := l.leases[jobID]

	return held && time.Now().Before(expiry)
}
