// Package ratelimit implements a per-user sliding-window request gate.
//
// Each user carries an ordered list of recent request times behind its own
// lock, so unrelated users never serialize on each other; the shared lock
// only guards the keyed map. The check and the append happen under the
// user's lock, so the ceiling holds for any rolling window even under
// concurrent calls for the same user. State is process-local and bounded by
// opportunistic pruning of idle users.
package ratelimit

import (
	"sync"
	"time"
)

// pruneEvery bounds how many Allow calls pass between idle-user sweeps
const pruneEvery = 5000

// userWindow is one user's recent request times. dead marks a window the
// pruner has unlinked; holders must re-lookup instead of using it.
type userWindow struct {
	mu    sync.Mutex
	times []time.Time
	dead  bool
}

// Gate is a per-user sliding-window rate limiter. Safe for concurrent use.
type Gate struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex // guards users and calls only
	users map[int64]*userWindow
	calls uint64
}

// NewGate creates a gate allowing limit requests per user within window.
// A limit below 1 is coerced to 1.
func NewGate(limit int, window time.Duration) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{
		limit:  limit,
		window: window,
		now:    time.Now,
		users:  make(map[int64]*userWindow),
	}
}

// Allow reports whether the user may make a request now, counting it if so.
// Denial leaves the user's window untouched.
func (g *Gate) Allow(userID int64) bool {
	now := g.now()

	for {
		w := g.lookup(userID, now)

		w.mu.Lock()
		if w.dead {
			// Unlinked by the pruner between lookup and lock
			w.mu.Unlock()
			continue
		}

		w.trim(now, g.window)
		if len(w.times) >= g.limit {
			w.mu.Unlock()
			return false
		}
		w.times = append(w.times, now)
		w.mu.Unlock()
		return true
	}
}

// RetryAfter returns how long until the user's oldest counted request
// leaves the window, or zero when the user is not currently limited.
func (g *Gate) RetryAfter(userID int64) time.Duration {
	now := g.now()

	g.mu.Lock()
	w, ok := g.users[userID]
	g.mu.Unlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dead {
		return 0
	}

	w.trim(now, g.window)
	if len(w.times) < g.limit {
		return 0
	}

	wait := w.times[0].Add(g.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// lookup returns the user's window, creating it on first sight, and runs
// the idle sweep every pruneEvery calls.
func (g *Gate) lookup(userID int64, now time.Time) *userWindow {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	if g.calls >= pruneEvery {
		g.pruneLocked(now)
		g.calls = 0
	}

	w, ok := g.users[userID]
	if !ok {
		w = &userWindow{}
		g.users[userID] = w
	}
	return w
}

// pruneLocked unlinks users whose whole window has expired. Callers must
// hold g.mu; each window is marked dead under its own lock so an in-flight
// Allow re-lookups instead of counting against an orphan.
func (g *Gate) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.window)
	for userID, w := range g.users {
		w.mu.Lock()
		// Timestamps are appended in order; the newest decides liveness.
		if len(w.times) == 0 || !w.times[len(w.times)-1].After(cutoff) {
			w.dead = true
			delete(g.users, userID)
		}
		w.mu.Unlock()
	}
}

// trim drops timestamps older than the window. Callers must hold w.mu.
func (w *userWindow) trim(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	recent := w.times[:0]
	for _, ts := range w.times {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	w.times = recent
}
