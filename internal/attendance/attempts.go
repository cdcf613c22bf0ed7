package attendance

import (
	"context"
	"sync"
	"time"
)

type pendingAttempt struct {
	attempt   *Attempt
	expiresAt time.Time
}

// AttemptManager holds started attempts between the location and face phases.
type AttemptManager struct {
	attempts map[string]pendingAttempt
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

// NewAttemptManager creates a manager whose attempts expire ttl after Put.
func NewAttemptManager(ttl time.Duration) *AttemptManager {
	return &AttemptManager{
		attempts: make(map[string]pendingAttempt),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock overrides the time source used for expiry.
func (m *AttemptManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Put stores an attempt awaiting its face capture and returns its expiry.
func (m *AttemptManager) Put(a *Attempt) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiresAt := m.now().Add(m.ttl)
	m.attempts[a.ID] = pendingAttempt{attempt: a, expiresAt: expiresAt}
	return expiresAt
}

// Take removes and returns the attempt, giving the caller exclusive ownership.
// Attempts that are expired or belong to another employee are reported as not found.
func (m *AttemptManager) Take(id, employeeID string) (*Attempt, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.attempts[id]
	if !ok || p.attempt.EmployeeID != employeeID {
		return nil, time.Time{}, ErrAttemptNotFound
	}
	delete(m.attempts, id)
	if m.now().After(p.expiresAt) {
		return nil, time.Time{}, ErrAttemptNotFound
	}
	return p.attempt, p.expiresAt, nil
}

// Release puts a taken attempt back if it can still be completed before expiresAt.
func (m *AttemptManager) Release(a *Attempt, expiresAt time.Time) bool {
	if a.State != StateLocationVerified {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now().After(expiresAt) {
		return false
	}
	m.attempts[a.ID] = pendingAttempt{attempt: a, expiresAt: expiresAt}
	return true
}

// Cancel abandons an attempt.
func (m *AttemptManager) Cancel(id, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.attempts[id]
	if !ok || p.attempt.EmployeeID != employeeID {
		return ErrAttemptNotFound
	}
	delete(m.attempts, id)
	return nil
}

// Sweep removes expired attempts and returns how many were removed.
func (m *AttemptManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, p := range m.attempts {
		if now.After(p.expiresAt) {
			delete(m.attempts, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending attempts.
func (m *AttemptManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attempts)
}

// Run sweeps expired attempts every interval until ctx is done.
func (m *AttemptManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
