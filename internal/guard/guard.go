// Package guard enforces single-flight semantics per user: at most one
// in-progress download per user at any time. A second request is rejected
// immediately rather than queued.
package guard

import (
	"sync"
	"time"
)

// activeDownload marks a user currently holding the slot
type activeDownload struct {
	startedAt time.Time
}

// Guard tracks in-flight downloads per user. Safe for concurrent use.
type Guard struct {
	mu     sync.Mutex
	active map[int64]activeDownload
}

// NewGuard creates an empty guard
func NewGuard() *Guard {
	return &Guard{active: make(map[int64]activeDownload)}
}

// TryAcquire records an active download for the user if none exists.
// Exactly one concurrent caller per user can succeed.
func (g *Guard) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.active[userID]; held {
		return false
	}
	g.active[userID] = activeDownload{startedAt: time.Now()}
	return true
}

// Release frees the user's slot. Releasing a user that holds nothing is a no-op.
func (g *Guard) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, userID)
}

// Held reports whether the user currently holds the slot
func (g *Guard) Held(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.active[userID]
	return held
}

// Active returns the number of downloads currently in flight
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}
