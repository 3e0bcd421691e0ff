package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/adapters/events"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/registry"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/store"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/tokenizer"
	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

const (
	testClientID   = "demo-client"
	testAddress    = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	testAccessKey  = "svc-access-signing-key-f3c1a89d7e24b605a"
	testRefreshKey = "svc-refresh-signing-key-d81f5c2a7b09e643"
)

var testMeta = RequestMeta{IP: "192.0.2.1", UserAgent: "go-test", RequestID: "req-1"}

// env wires the full service stack onto in-memory adapters.
type env struct {
	challengeStore *store.MemoryChallengeStore
	sessionStore   *store.MemorySessionStore
	denylistStore  *store.MemoryDenylistStore
	rateStore      *store.MemoryRateLimitStore
	auditStore     *store.MemoryAuditStore

	audit      *AuditService
	tokens     *TokenService
	challenges *ChallengeService
	sessions   *SessionService
	limiter    *RateLimiter
	guard      *BruteForceGuard
	auth       *AuthService
}

// newEnv builds the stack with the given signature verifier. Tests that
// never reach signature checking pass nil and get the real verifier.
func newEnv(t *testing.T, verify SignatureVerifier) *env {
	t.Helper()
	log := zap.NewNop()

	e := &env{
		challengeStore: store.NewMemoryChallengeStore(),
		sessionStore:   store.NewMemorySessionStore(),
		denylistStore:  store.NewMemoryDenylistStore(),
		rateStore:      store.NewMemoryRateLimitStore(),
		auditStore:     store.NewMemoryAuditStore(),
	}

	clients := registry.NewMemoryRegistry([]core.Client{
		{ID: testClientID, Secret: "client-secret-value", RedirectURL: "http://localhost:3000/callback"},
	})

	tk, err := tokenizer.NewJWTTokenizer("polkadot-sso-test", testAccessKey, testRefreshKey)
	if err != nil {
		t.Fatalf("tokenizer: %v", err)
	}

	e.audit = NewAuditService(e.auditStore, log, 0)
	t.Cleanup(e.audit.Close)

	e.tokens = NewTokenService(tk, e.denylistStore, 15*time.Minute, 7*24*time.Hour)
	e.challenges = NewChallengeService(e.challengeStore, clients, e.audit, ChallengeConfig{
		Domain:  "localhost",
		AppURI:  "http://localhost:9000",
		ChainID: "polkadot",
	}, log)
	e.sessions = NewSessionService(e.sessionStore, e.tokens, e.audit, events.NopPublisher{}, log)
	e.limiter = NewRateLimiter(e.rateStore, nil, log)
	e.guard = NewBruteForceGuard(e.rateStore, e.audit, 0, 0, log)
	e.auth = NewAuthService(e.challenges, e.sessions, e.tokens, clients, e.audit, e.limiter, events.NopPublisher{}, verify, log)
	return e
}

// waitForAudit blocks until the async audit worker has persisted an event
// matching the filter.
func (e *env) waitForAudit(t *testing.T, filter core.AuditFilter) *core.AuditEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := e.auditStore.Query(context.Background(), filter, 1)
		if err == nil && len(events) > 0 {
			return events[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no audit event matched %+v", filter)
	return nil
}

func zapNop() *zap.Logger { return zap.NewNop() }

func acceptAll(message, signature, address string) bool { return true }

func rejectAll(message, signature, address string) bool { return false }
