// Package stats keeps per-user usage counters for the lifetime of the
// process. Nothing here is durable; restart resets everything.
package stats

import (
	"sync"
	"time"

	"github.com/vidfetch/vidfetch-bot/internal/model"
)

// Tracker accumulates per-user download statistics. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	users map[int64]*model.UserStats
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{users: make(map[int64]*model.UserStats)}
}

// RecordSuccess tallies a completed download for the user
func (t *Tracker) RecordSuccess(userID int64, site string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getLocked(userID)
	s.Downloads++
	s.Bytes += size
	s.LastUse = time.Now()
	if site != "" {
		s.Sites[site]++
	}
}

// RecordFailure tallies a failed attempt for the user
func (t *Tracker) RecordFailure(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.getLocked(userID)
	s.Failures++
	s.LastUse = time.Now()
}

// Snapshot returns a copy of the user's stats safe to read without locking
func (t *Tracker) Snapshot(userID int64) model.UserStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLocked(userID).Clone()
}

// getLocked returns the user's record, creating it on first sight.
// Callers must hold t.mu.
func (t *Tracker) getLocked(userID int64) *model.UserStats {
	s, ok := t.users[userID]
	if !ok {
		s = &model.UserStats{
			UserID:   userID,
			Sites:    make(map[string]int),
			FirstUse: time.Now(),
			LastUse:  time.Now(),
		}
		t.users[userID] = s
	}
	return s
}
