package liveness

import (
	"sync"
	"time"
)

// Tracker is the shared pipeline health state: the recording worker writes
// it, the supervisor reads it and owns the reboot latch. All access goes
// through the mutex so readers never observe torn values.
type Tracker struct {
	mu            sync.Mutex
	lastSuccess   time.Time
	corruptCount  int
	rebootLatched bool
}

// NewTracker seeds the success timestamp with process start so the idle
// ceiling measures silence since boot, not since the epoch.
func NewTracker() *Tracker {
	return &Tracker{lastSuccess: time.Now()}
}

// RecordSuccess stamps a successful recording+conversion and clears the
// corruption streak.
func (t *Tracker) RecordSuccess(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSuccess = now
	t.corruptCount = 0
}

// RecordCorrupt increments the corruption streak and returns the new
// count so the caller can check the escalation threshold synchronously.
func (t *Tracker) RecordCorrupt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.corruptCount++
	return t.corruptCount
}

// TryLatch arms the reboot latch. Only the first caller gets true; the
// losing escalation path must not fire a second reboot.
func (t *Tracker) TryLatch() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rebootLatched {
		return false
	}
	t.rebootLatched = true
	return true
}

// Snapshot returns a consistent view of the health state.
func (t *Tracker) Snapshot() (lastSuccess time.Time, corruptCount int, rebootLatched bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSuccess, t.corruptCount, t.rebootLatched
}
