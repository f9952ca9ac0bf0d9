// Package cooldown suppresses repeat notifications inside a sliding window.
package cooldown

import (
	"context"
	"sync"
	"time"
)

type key struct {
	userID    int64
	keywordID int64
}

// Tracker remembers when each (user, keyword) pair was last notified and
// which users were recently unreachable over DM. State is in-memory only
// and intentionally lost on restart.
type Tracker struct {
	window time.Duration

	mu           sync.Mutex
	lastNotified map[key]time.Time
	unreachable  map[int64]time.Time
}

// NewTracker creates a Tracker with the given cooldown window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window:       window,
		lastNotified: make(map[key]time.Time),
		unreachable:  make(map[int64]time.Time),
	}
}

// ShouldNotify reports whether the (user, keyword) pair is outside its
// cooldown window. On true it records now as the notification time before
// returning, so two near-simultaneous messages cannot both pass. Expired
// entries are evicted lazily on access.
func (t *Tracker) ShouldNotify(userID, keywordID int64, now time.Time) bool {
	k := key{userID: userID, keywordID: keywordID}

	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastNotified[k]; ok && now.Sub(last) < t.window {
		return false
	}
	t.lastNotified[k] = now
	return true
}

// MarkUnreachable records that DMs to the user failed permanently. The
// mark expires after one cooldown window.
func (t *Tracker) MarkUnreachable(userID int64, now time.Time) {
	t.mu.Lock()
	t.unreachable[userID] = now
	t.mu.Unlock()
}

// IsUnreachable reports whether the user was marked unreachable within the
// last cooldown window.
func (t *Tracker) IsUnreachable(userID int64, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	marked, ok := t.unreachable[userID]
	if !ok {
		return false
	}
	if now.Sub(marked) >= t.window {
		delete(t.unreachable, userID)
		return false
	}
	return true
}

// Sweep drops all expired entries. Eviction is already lazy on access;
// this bounds memory under high keyword churn when called periodically.
func (t *Tracker) Sweep(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, last := range t.lastNotified {
		if now.Sub(last) >= t.window {
			delete(t.lastNotified, k)
		}
	}
	for userID, marked := range t.unreachable {
		if now.Sub(marked) >= t.window {
			delete(t.unreachable, userID)
		}
	}
}

// RunSweeper sweeps at the given interval, blocking until ctx is cancelled.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(time.Now())
		}
	}
}
