// Package lockout tracks consecutive failed logins per user in memory and
// reports when a user crosses the org's lockout threshold. The durable record
// of a lockout is the security event written by the caller; this tracker only
// holds the sliding state.
package lockout

import (
	"sync"
	"time"
)

type entry struct {
	failures    int
	lockedUntil time.Time
}

// Tracker is an in-memory failed-login counter with per-user lock windows.
// Safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	m    map[string]entry
	nowF func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// RecordFailure counts one failed login for userID. When the count reaches
// threshold the user is locked for lockFor and lockedNow is true — exactly
// once per lock window, so callers can emit a single lockout event.
func (t *Tracker) RecordFailure(userID string, threshold int, lockFor time.Duration) (lockedNow bool) {
	if threshold <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.nowF()
	e := t.m[userID]
	if e.lockedUntil.After(now) {
		// Already locked; failures during the window do not re-trigger.
		return false
	}
	e.failures++
	if e.failures >= threshold {
		e.failures = 0
		e.lockedUntil = now.Add(lockFor)
		t.m[userID] = e
		return true
	}
	t.m[userID] = e
	return false
}

// RecordSuccess resets the failure count for userID. An active lock is not cleared.
func (t *Tracker) RecordSuccess(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[userID]
	if !ok {
		return
	}
	e.failures = 0
	if !e.lockedUntil.After(t.nowF()) {
		delete(t.m, userID)
		return
	}
	t.m[userID] = e
}

// Locked reports whether userID is inside a lock window.
func (t *Tracker) Locked(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.m[userID]
	if !ok {
		return false
	}
	if !e.lockedUntil.After(t.nowF()) {
		if e.failures == 0 {
			delete(t.m, userID)
		}
		return false
	}
	return true
}
