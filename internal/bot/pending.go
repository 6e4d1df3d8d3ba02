package bot

import (
	"sync"
	"time"
)

// pendingTTL bounds how long a quality prompt stays answerable
const pendingTTL = 5 * time.Minute

// pendingRequest is a URL waiting on the user's quality choice
type pendingRequest struct {
	url      string
	chatID   int64
	promptID int
	created  time.Time
}

// pendingStore holds at most one pending request per user. A new URL
// replaces any older unanswered prompt.
type pendingStore struct {
	mu  sync.Mutex
	now func() time.Time

	requests map[int64]pendingRequest
}

func newPendingStore() *pendingStore {
	return &pendingStore{
		now:      time.Now,
		requests: make(map[int64]pendingRequest),
	}
}

// Put stores the user's pending request, replacing any previous one
func (p *pendingStore) Put(userID int64, req pendingRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req.created = p.now()
	p.requests[userID] = req
}

// Pop removes and returns the user's pending request. An expired entry is
// dropped and reported as absent.
func (p *pendingStore) Pop(userID int64) (pendingRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[userID]
	if !ok {
		return pendingRequest{}, false
	}
	delete(p.requests, userID)

	if p.now().Sub(req.created) > pendingTTL {
		return pendingRequest{}, false
	}
	return req, true
}
