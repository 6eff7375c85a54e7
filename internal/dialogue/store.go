package dialogue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionStore holds active call sessions keyed by call ID. Get returns
// (nil, nil) when no session exists; callers treat absence as recoverable.
// Webhook delivery is serialized per call by the telephony provider, so no
// per-session locking is needed beyond guarding the shared map.
type SessionStore interface {
	Create(ctx context.Context, session *CallSession) error
	Get(ctx context.Context, callID string) (*CallSession, error)
	Save(ctx context.Context, session *CallSession) error
	Delete(ctx context.Context, callID string) error
	// Mutate applies fn to the stored session under the store's write lock and
	// persists the result. It is a no-op when the session is absent.
	Mutate(ctx context.Context, callID string, fn func(*CallSession)) error
}

// MemoryStore is the default in-process SessionStore. Sessions are evicted on
// terminal transitions by the engine; the janitor sweeps anything idle past
// the TTL so a lost status webhook can't leak sessions forever.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*CallSession
	idleTTL  time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an in-memory session store. idleTTL <= 0 disables
// idle eviction.
func NewMemoryStore(idleTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*CallSession),
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, session *CallSession) error {
	if session == nil || session.CallID == "" {
		return fmt.Errorf("session store: call_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.CallID] = session
	return nil
}

func (s *MemoryStore) Get(_ context.Context, callID string) (*CallSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[callID], nil
}

func (s *MemoryStore) Save(_ context.Context, session *CallSession) error {
	if session == nil || session.CallID == "" {
		return fmt.Errorf("session store: call_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.CallID] = session
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
	return nil
}

func (s *MemoryStore) Mutate(_ context.Context, callID string, fn func(*CallSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[callID]; ok {
		fn(session)
	}
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor sweeps idle sessions every interval until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	cutoff := s.now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.LastActivityAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
