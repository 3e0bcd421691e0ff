package store

import (
	"context"
	"sync"
	"time"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// MemoryChallengeStore is an in-memory implementation of ports.ChallengeStore
// for single-instance deployments and tests.
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*core.Challenge
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{challenges: make(map[string]*core.Challenge)}
}

func (s *MemoryChallengeStore) Save(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *challenge
	s.challenges[challenge.ID] = &cp
	return nil
}

func (s *MemoryChallengeStore) Get(ctx context.Context, id string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, core.E(core.KindNotFound, core.CodeChallengeNotFound, "challenge not found")
	}
	cp := *challenge
	return &cp, nil
}

// Consume serializes the check-and-flip on the store mutex so exactly one
// concurrent caller observes used=false.
func (s *MemoryChallengeStore) Consume(ctx context.Context, id string, now time.Time) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[id]
	if !ok {
		return nil, core.E(core.KindNotFound, core.CodeChallengeNotFound, "challenge not found")
	}
	if challenge.Expired(now) {
		return nil, core.E(core.KindExpired, core.CodeChallengeExpired, "challenge has expired")
	}
	if challenge.Used {
		return nil, core.E(core.KindReplay, core.CodeChallengeReplay, "challenge has already been used")
	}
	challenge.Used = true
	cp := *challenge
	return &cp, nil
}

func (s *MemoryChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, challenge := range s.challenges {
		if challenge.Expired(now) || challenge.Used {
			delete(s.challenges, id)
			removed++
		}
	}
	return removed, nil
}

// MemorySessionStore is an in-memory implementation of ports.SessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
	active   map[string]string // address|client -> session id
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*core.Session),
		active:   make(map[string]string),
	}
}

func activeKey(address, clientID string) string {
	return address + "|" + clientID
}

func (s *MemorySessionStore) Save(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp

	key := activeKey(session.Address, session.ClientID)
	if session.IsActive {
		s.active[key] = session.ID
	} else if s.active[key] == session.ID {
		delete(s.active, key)
	}
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, core.E(core.KindNotFound, core.CodeSessionNotFound, "session not found")
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) GetActive(ctx context.Context, address, clientID string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.active[activeKey(address, clientID)]
	if !ok {
		return nil, core.E(core.KindNotFound, core.CodeSessionNotFound, "no active session")
	}
	session, ok := s.sessions[id]
	if !ok || !session.IsActive {
		return nil, core.E(core.KindNotFound, core.CodeSessionNotFound, "no active session")
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	session.IsActive = false
	key := activeKey(session.Address, session.ClientID)
	if s.active[key] == id {
		delete(s.active, key)
	}
	return nil
}

func (s *MemorySessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.After(session.RefreshTokenExpiresAt) {
			key := activeKey(session.Address, session.ClientID)
			if s.active[key] == id {
				delete(s.active, key)
			}
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// MemoryDenylistStore tracks revoked jtis with lazy expiry.
type MemoryDenylistStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemoryDenylistStore() *MemoryDenylistStore {
	return &MemoryDenylistStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryDenylistStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.revoked[jti] = now.Add(ttl)

	// Opportunistic prune keeps the map bounded without a timer.
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
		}
	}
	return nil
}

func (s *MemoryDenylistStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

// MemoryRateLimitStore keeps fixed-window counters guarded by a single
// mutex. Counters are capped at limit+1 so a saturated window cannot grow.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{windows: make(map[string]*rateWindow)}
}

func (s *MemoryRateLimitStore) Incr(ctx context.Context, key string, window time.Duration, limit int64) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{count: 1, resetAt: now.Add(window)}
		s.windows[key] = w
		return w.count, w.resetAt, nil
	}
	if w.count <= limit {
		w.count++
	}
	return w.count, w.resetAt, nil
}

// Sweep drops windows that have rolled over. Called by the background
// sweeper; correctness does not depend on it.
func (s *MemoryRateLimitStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
