package flow

import (
	"testing"
	"time"
)

func TestInMemorySessionStore_SetGet(t *testing.T) {
	s := NewInMemorySessionStore(0)

	if got := s.Get("5511999999999"); got != StateNone {
		t.Errorf("expected StateNone for unknown sender, got %q", got)
	}

	s.Set("5511999999999", StateQuote)
	if got := s.Get("5511999999999"); got != StateQuote {
		t.Errorf("expected StateQuote, got %q", got)
	}

	s.Set("5511999999999", StateNone)
	if got := s.Get("5511999999999"); got != StateNone {
		t.Errorf("expected StateNone after reset, got %q", got)
	}
}

func TestInMemorySessionStore_IdleExpiry(t *testing.T) {
	s := NewInMemorySessionStore(0)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set("sender", StateAgent)

	// Just inside the threshold: the state survives.
	now = now.Add(DefaultSessionTTL)
	if got := s.Get("sender"); got != StateAgent {
		t.Errorf("expected state to survive at the TTL boundary, got %q", got)
	}

	// Past the threshold: treated as absent and evicted on read.
	now = now.Add(time.Second)
	if got := s.Get("sender"); got != StateNone {
		t.Errorf("expected expired session to read as StateNone, got %q", got)
	}
	if s.Len() != 0 {
		t.Errorf("expected expired session to be evicted, store has %d entries", s.Len())
	}
}

func TestInMemorySessionStore_SetRefreshesActivity(t *testing.T) {
	s := NewInMemorySessionStore(0)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set("sender", StateCatalog)
	now = now.Add(20 * time.Minute)
	s.Set("sender", StateCatalog)
	now = now.Add(20 * time.Minute)

	// 40 minutes since creation but only 20 since the last write.
	if got := s.Get("sender"); got != StateCatalog {
		t.Errorf("expected refreshed session to survive, got %q", got)
	}
}
