// Package flow provides the per-sender session state store.
package flow

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSessionTTL is the idle threshold after which a session is treated
// as absent.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore defines the interface for managing per-sender conversational
// state. It is injected into the Router so the in-memory backend can later be
// swapped for a durable one without touching routing logic.
type SessionStore interface {
	// Get retrieves the current state for a sender. Idle sessions read as
	// StateNone.
	Get(sender string) StateType

	// Set overwrites the state for a sender and stamps the activity time.
	Set(sender string, state StateType)
}

type sessionEntry struct {
	state      StateType
	lastActive time.Time
}

// InMemorySessionStore keeps sessions in a mutex-guarded map. State is lost
// on restart; that is an accepted limitation of the design, not a bug.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	ttl      time.Duration
	now      func() time.Time // injectable clock for tests
}

// NewInMemorySessionStore creates a session store with the given idle TTL.
// A non-positive TTL selects DefaultSessionTTL.
func NewInMemorySessionStore(ttl time.Duration) *InMemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	slog.Debug("Creating InMemorySessionStore", "ttl", ttl)
	return &InMemorySessionStore{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the stored state for a sender. A session idle for longer than
// the TTL is evicted as a side effect of the read and reported as StateNone.
func (s *InMemorySessionStore) Get(sender string) StateType {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sender]
	if !ok {
		return StateNone
	}
	if s.now().Sub(entry.lastActive) > s.ttl {
		delete(s.sessions, sender)
		slog.Debug("InMemorySessionStore.Get: session expired", "sender", sender, "state", entry.state)
		return StateNone
	}
	return entry.state
}

// Set overwrites the state for a sender and stamps the current time.
func (s *InMemorySessionStore) Set(sender string, state StateType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sender] = sessionEntry{state: state, lastActive: s.now()}
	slog.Debug("InMemorySessionStore.Set: state updated", "sender", sender, "state", state)
}

// Len reports the number of live entries, expired or not. Used by the health
// endpoint as a cheap activity indicator.
func (s *InMemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
