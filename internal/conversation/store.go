package conversation

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionID is used when a request carries no session id.
const DefaultSessionID = "default"

type session struct {
	memory   *Memory
	lastSeen time.Time
}

// Store maps session ids to their memories and expires idle sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
	capacity int
	idleTTL  time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions keep capacity turns and expire after idleTTL.
// A non-positive idleTTL disables expiry.
func NewStore(capacity int, idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*session),
		capacity: capacity,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Session returns the memory for id, creating it on first use.
func (s *Store) Session(id string) *Memory {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{memory: NewMemory(s.capacity)}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess.memory
}

// Drop removes a session. It reports whether the session existed.
func (s *Store) Drop(id string) bool {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
func (s *Store) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps the store every interval until ctx is cancelled. The onSweep callback,
// when set, receives the number of removed sessions and the remaining count.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed, remaining int)) {
	if interval <= 0 || s.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep()
			if onSweep != nil {
				onSweep(removed, s.Len())
			}
		}
	}
}
