package model

import "time"

// UserStats tracks a single user's usage over the process lifetime.
// Not durable across restarts.
type UserStats struct {
	UserID    int64
	Downloads int   // successful fetches
	Failures  int   // failed fetch attempts
	Bytes     int64 // cumulative delivered bytes
	Sites     map[string]int
	FirstUse  time.Time
	LastUse   time.Time
}

// Clone returns a deep copy safe to read outside the tracker's lock
func (s *UserStats) Clone() UserStats {
	out := *s
	out.Sites = make(map[string]int, len(s.Sites))
	for k, v := range s.Sites {
		out.Sites[k] = v
	}
	return out
}
