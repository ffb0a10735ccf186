package auth

import (
	"sync"
	"time"

	"github.com/good-yellow-bee/slate/internal/models"
)

type lockoutEntry struct {
	failures    int
	lastFailure time.Time
	expiresAt   time.Time // zero while not locked
}

func (e *lockoutEntry) locked(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.Before(e.expiresAt)
}

// LockoutTracker counts failed logins per email and locks the account once
// the threshold is reached.
//
// State is in memory only and is lost on restart.
type LockoutTracker struct {
	mu              sync.Mutex
	entries         map[string]*lockoutEntry
	threshold       int
	lockoutDuration time.Duration
	now             func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewLockoutTracker creates a tracker. Call Close to stop its cleanup loop.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	t := &LockoutTracker{
		entries:         make(map[string]*lockoutEntry),
		threshold:       threshold,
		lockoutDuration: duration,
		now:             time.Now,
		done:            make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// RecordFailure records a failed login and reports whether the account is
// now locked.
func (t *LockoutTracker) RecordFailure(email string) bool {
	key := models.NormalizeEmail(email)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}
	if entry.locked(now) {
		return true
	}
	if !entry.expiresAt.IsZero() {
		// lock expired, start over
		*entry = lockoutEntry{}
	}

	entry.failures++
	entry.lastFailure = now
	if entry.failures >= t.threshold {
		entry.expiresAt = now.Add(t.lockoutDuration)
		return true
	}
	return false
}

// IsLocked reports whether the account is currently locked.
func (t *LockoutTracker) IsLocked(email string) bool {
	return t.RemainingLockoutTime(email) > 0
}

// RemainingLockoutTime returns how long until the lock expires.
func (t *LockoutTracker) RemainingLockoutTime(email string) time.Duration {
	key := models.NormalizeEmail(email)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok || !entry.locked(now) {
		return 0
	}
	return entry.expiresAt.Sub(now)
}

// ClearFailures forgets the account's failures after a successful login.
func (t *LockoutTracker) ClearFailures(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, models.NormalizeEmail(email))
}

// Close stops the cleanup loop.
func (t *LockoutTracker) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *LockoutTracker) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.cleanup()
		case <-t.done:
			return
		}
	}
}

func (t *LockoutTracker) cleanup() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for key, entry := range t.entries {
		if entry.locked(now) {
			continue
		}
		if !entry.expiresAt.IsZero() || now.Sub(entry.lastFailure) > t.lockoutDuration {
			delete(t.entries, key)
		}
	}
}
