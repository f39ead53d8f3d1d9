package httpapi

import (
	"sync"
	"sync/atomic"
)

// SessionRegistry tracks active speech sessions and supports graceful
// draining. When draining is enabled, new sessions are rejected while
// in-flight streams finish naturally.
//
// The mu mutex makes the draining check and wg.Add atomic in Add(),
// preventing a race where StartDraining+Wait could be called between the
// draining check and wg.Add.
type SessionRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewSessionRegistry creates a new SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Add registers a new active session. Returns false if the registry is
// draining, meaning no new sessions should be accepted.
func (sr *SessionRegistry) Add() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	if sr.draining {
		return false
	}
	sr.wg.Add(1)
	sr.count.Add(1)
	return true
}

// Done marks a session as completed. Must be called exactly once per
// successful Add.
func (sr *SessionRegistry) Done() {
	sr.count.Add(-1)
	sr.wg.Done()
}

// StartDraining sets the draining flag so that future Add calls return
// false. Safe to call concurrently with Add.
func (sr *SessionRegistry) StartDraining() {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (sr *SessionRegistry) IsDraining() bool {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.draining
}

// ActiveCount returns the number of currently active sessions.
func (sr *SessionRegistry) ActiveCount() int64 {
	return sr.count.Load()
}

// Wait blocks until all active sessions have completed.
func (sr *SessionRegistry) Wait() {
	sr.wg.Wait()
}
