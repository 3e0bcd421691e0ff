package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/adapters/events"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/registry"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/store"
	"github.com/CoachCoe/polkadot-sso-sub005/adapters/tokenizer"
	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/internal/substrate"
	"github.com/CoachCoe/polkadot-sso-sub005/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testApp struct {
	router     *gin.Engine
	auditStore *store.MemoryAuditStore
}

func newTestApp(t *testing.T) *testApp {
	return newTestAppWithGuard(t, 0, 0)
}

func newTestAppWithGuard(t *testing.T, threshold int, window time.Duration) *testApp {
	t.Helper()
	log := zap.NewNop()

	auditStore := store.NewMemoryAuditStore()
	denylistStore := store.NewMemoryDenylistStore()
	rateStore := store.NewMemoryRateLimitStore()

	clients := registry.NewMemoryRegistry([]core.Client{
		{ID: "demo-client", RedirectURL: "http://localhost:3000/callback"},
	})
	tk, err := tokenizer.NewJWTTokenizer("polkadot-sso-test",
		"e2e-access-signing-key-f3c1a89d7e24b605a",
		"e2e-refresh-signing-key-d81f5c2a7b09e643")
	require.NoError(t, err)

	audit := service.NewAuditService(auditStore, log, 0)
	t.Cleanup(audit.Close)

	tokens := service.NewTokenService(tk, denylistStore, 15*time.Minute, 7*24*time.Hour)
	challenges := service.NewChallengeService(store.NewMemoryChallengeStore(), clients, audit, service.ChallengeConfig{
		Domain:  "localhost",
		AppURI:  "http://localhost:9000",
		ChainID: "polkadot",
	}, log)
	sessions := service.NewSessionService(store.NewMemorySessionStore(), tokens, audit, events.NopPublisher{}, log)
	limiter := service.NewRateLimiter(rateStore, nil, log)
	guard := service.NewBruteForceGuard(rateStore, audit, threshold, window, log)
	auth := service.NewAuthService(challenges, sessions, tokens, clients, audit, limiter, events.NopPublisher{}, nil, log)

	router := SetupRouter(RouterDeps{
		Auth:    auth,
		Limiter: limiter,
		Guard:   guard,
		Audit:   audit,
		Log:     log,
	})
	return &testApp{router: router, auditStore: auditStore}
}

type envelope struct {
	Success   bool                   `json:"success"`
	Data      map[string]interface{} `json:"data"`
	Error     *ErrorBody             `json:"error"`
	RequestID string                 `json:"request_id"`
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, bearer string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

type wallet struct {
	address string
	priv    ed25519.PrivateKey
}

func newWallet(t *testing.T) *wallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	address, err := substrate.EncodeSS58(pub, 42)
	require.NoError(t, err)
	return &wallet{address: address, priv: priv}
}

func (w *wallet) sign(message string) string {
	return hex.EncodeToString(ed25519.Sign(w.priv, []byte(message)))
}

func (a *testApp) login(t *testing.T, w *wallet) map[string]interface{} {
	t.Helper()

	resp, env := a.do(t, http.MethodGet, "/api/auth/challenge?client_id=demo-client&address="+w.address, nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	message := env.Data["message"].(string)

	resp, env = a.do(t, http.MethodPost, "/api/auth/verify", gin.H{
		"challenge_id":  env.Data["challenge_id"],
		"code_verifier": env.Data["code_verifier"],
		"state":         env.Data["state"],
		"signature":     w.sign(message),
		"address":       w.address,
		"message":       message,
	}, "")
	require.Equal(t, http.StatusOK, resp.Code, "verify failed: %+v", env.Error)
	return env.Data
}

func TestChallengeVerifyFlow(t *testing.T) {
	app := newTestApp(t)
	w := newWallet(t)

	resp, env := app.do(t, http.MethodGet, "/api/auth/challenge?client_id=demo-client&address="+w.address, nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, env.RequestID, resp.Header().Get("X-Request-Id"))
	for _, field := range []string{"challenge_id", "message", "nonce", "code_verifier", "code_challenge", "state", "expires_at"} {
		assert.Contains(t, env.Data, field)
	}

	data := app.login(t, w)
	assert.Equal(t, "Bearer", data["token_type"])
	assert.Equal(t, float64(900), data["expires_in"])
	assert.Equal(t, w.address, data["address"])
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
}

func TestChallengeRequiresClientID(t *testing.T) {
	app := newTestApp(t)

	resp, env := app.do(t, http.MethodGet, "/api/auth/challenge", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, env.Success)
	assert.Equal(t, core.CodeInvalidRequest, env.Error.Code)

	resp, env = app.do(t, http.MethodGet, "/api/auth/challenge?client_id=unknown", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, core.CodeUnknownClient, env.Error.Code)
}

func TestVerifyUnknownChallengeIs404(t *testing.T) {
	app := newTestApp(t)

	resp, env := app.do(t, http.MethodPost, "/api/auth/verify", gin.H{
		"challenge_id":  "missing",
		"code_verifier": "v",
		"state":         "s",
		"signature":     "aa",
		"address":       "addr",
		"message":       "m",
	}, "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, core.CodeChallengeNotFound, env.Error.Code)
}

func TestVerifyBadSignatureIs401(t *testing.T) {
	app := newTestApp(t)
	w := newWallet(t)

	resp, env := app.do(t, http.MethodGet, "/api/auth/challenge?client_id=demo-client&address="+w.address, nil, "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp, env = app.do(t, http.MethodPost, "/api/auth/verify", gin.H{
		"challenge_id":  env.Data["challenge_id"],
		"code_verifier": env.Data["code_verifier"],
		"state":         env.Data["state"],
		"signature":     w.sign("something else entirely"),
		"address":       w.address,
		"message":       env.Data["message"],
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, core.CodeInvalidSignature, env.Error.Code)
}

func TestSessionEndpoint(t *testing.T) {
	app := newTestApp(t)
	w := newWallet(t)
	data := app.login(t, w)

	resp, env := app.do(t, http.MethodGet, "/api/auth/session", nil, data["access_token"].(string))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, w.address, env.Data["address"])
	assert.Equal(t, "demo-client", env.Data["client_id"])
	assert.Equal(t, data["session_id"], env.Data["session_id"])

	resp, _ = app.do(t, http.MethodGet, "/api/auth/session", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp, _ = app.do(t, http.MethodGet, "/api/auth/session", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestRefreshRotation(t *testing.T) {
	app := newTestApp(t)
	w := newWallet(t)
	data := app.login(t, w)

	resp, env := app.do(t, http.MethodPost, "/api/auth/token", gin.H{
		"grant_type":    "refresh_token",
		"refresh_token": data["refresh_token"],
		"client_id":     "demo-client",
	}, "")
	require.Equal(t, http.StatusOK, resp.Code, "refresh failed: %+v", env.Error)
	assert.NotEqual(t, data["refresh_token"], env.Data["refresh_token"])

	// Replaying the pre-rotation refresh token trips reuse detection.
	resp, env = app.do(t, http.MethodPost, "/api/auth/token", gin.H{
		"grant_type":    "refresh_token",
		"refresh_token": data["refresh_token"],
		"client_id":     "demo-client",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, core.CodeRefreshReuse, env.Error.Code)

	// The rotated pair died with the session.
	resp, env = app.do(t, http.MethodGet, "/api/auth/session", nil, data["access_token"].(string))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutIsIdempotentUntilTokenDies(t *testing.T) {
	app := newTestApp(t)
	w := newWallet(t)
	data := app.login(t, w)
	access := data["access_token"].(string)

	resp, env := app.do(t, http.MethodPost, "/api/auth/logout", nil, access)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, env.Success)

	// The access token was revoked by the logout, so a replay fails in the
	// auth middleware.
	resp, env = app.do(t, http.MethodPost, "/api/auth/logout", nil, access)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, core.CodeTokenRevoked, env.Error.Code)
}

func TestVerifyRateLimit(t *testing.T) {
	app := newTestApp(t)

	body := gin.H{
		"challenge_id":  "missing",
		"code_verifier": "v",
		"state":         "s",
		"signature":     "aa",
		"address":       "addr",
		"message":       "m",
	}
	for i := 0; i < 3; i++ {
		resp, _ := app.do(t, http.MethodPost, "/api/auth/verify", body, "")
		assert.Equal(t, http.StatusNotFound, resp.Code, "request %d within budget", i+1)
	}

	resp, env := app.do(t, http.MethodPost, "/api/auth/verify", body, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, core.CodeRateLimited, env.Error.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))

	waitForAuditAction(t, app.auditStore, core.ActionRateLimitExceeded)
}

func TestBruteForceGuardCountsAcrossEndpoints(t *testing.T) {
	app := newTestAppWithGuard(t, 6, time.Hour)

	// Stay inside every per-endpoint budget while feeding the shared
	// per-IP counter from two different endpoints.
	for i := 0; i < 3; i++ {
		resp, _ := app.do(t, http.MethodGet, "/api/auth/challenge?client_id=demo-client", nil, "")
		require.Equal(t, http.StatusOK, resp.Code, "challenge request %d", i+1)
	}
	refresh := gin.H{
		"grant_type":    "refresh_token",
		"refresh_token": "not-a-real-token",
		"client_id":     "demo-client",
	}
	for i := 0; i < 3; i++ {
		resp, env := app.do(t, http.MethodPost, "/api/auth/token", refresh, "")
		require.Equal(t, http.StatusUnauthorized, resp.Code, "token request %d", i+1)
		require.Equal(t, core.CodeTokenInvalid, env.Error.Code)
	}

	resp, env := app.do(t, http.MethodGet, "/api/auth/challenge?client_id=demo-client", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, core.CodeBruteForceDetected, env.Error.Code)

	waitForAuditAction(t, app.auditStore, core.ActionBruteForceDetected)
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	resp, _ := app.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func waitForAuditAction(t *testing.T, s *store.MemoryAuditStore, action string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		events, err := s.Query(context.Background(), core.AuditFilter{Action: action}, 1)
		if err == nil && len(events) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no audit event with action %s", action)
}
