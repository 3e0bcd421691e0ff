package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// EndpointClass selects the tuned limit for a protocol endpoint.
type EndpointClass string

const (
	EndpointChallenge EndpointClass = "challenge"
	EndpointVerify    EndpointClass = "verify"
	EndpointToken     EndpointClass = "token"
	EndpointRefresh   EndpointClass = "refresh"
	EndpointLogout    EndpointClass = "logout"
	EndpointAPI       EndpointClass = "api"
)

// Limit is a fixed-window budget for one endpoint class.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultLimits returns the per-endpoint budgets. Verify and token gate
// session issuance and carry the tightest limits.
func DefaultLimits() map[EndpointClass]Limit {
	return map[EndpointClass]Limit{
		EndpointChallenge: {MaxRequests: 10, Window: time.Minute},
		EndpointVerify:    {MaxRequests: 3, Window: time.Minute},
		EndpointToken:     {MaxRequests: 5, Window: time.Minute},
		EndpointRefresh:   {MaxRequests: 10, Window: time.Minute},
		EndpointLogout:    {MaxRequests: 10, Window: time.Minute},
		EndpointAPI:       {MaxRequests: 100, Window: time.Minute},
	}
}

// Decision is the outcome of recording one request against a limit.
type Decision struct {
	Limited    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RateLimiter applies fixed-window limits keyed by (client identity,
// endpoint class). Counter state lives behind ports.RateLimitStore so
// multi-instance deployments can share it.
type RateLimiter struct {
	store  ports.RateLimitStore
	limits map[EndpointClass]Limit
	log    *zap.Logger
}

func NewRateLimiter(store ports.RateLimitStore, limits map[EndpointClass]Limit, log *zap.Logger) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RateLimiter{store: store, limits: limits, log: log}
}

// Record counts one request and decides whether it exceeds the class
// budget. Store failures fail closed: the request is treated as limited.
func (rl *RateLimiter) Record(ctx context.Context, key string, class EndpointClass) Decision {
	limit, ok := rl.limits[class]
	if !ok {
		limit = rl.limits[EndpointAPI]
	}
	if limit.MaxRequests <= 0 {
		limit = Limit{MaxRequests: 100, Window: time.Minute}
	}

	count, resetAt, err := rl.store.Incr(ctx, string(class)+":"+key, limit.Window, int64(limit.MaxRequests))
	if err != nil {
		rl.log.Warn("rate limit store unavailable, failing closed",
			zap.String("class", string(class)), zap.Error(err))
		return Decision{
			Limited:    true,
			Limit:      limit.MaxRequests,
			RetryAfter: limit.Window,
			ResetAt:    time.Now().Add(limit.Window),
		}
	}

	retryAfter := time.Until(resetAt)
	if retryAfter < 0 {
		retryAfter = 0
	}
	remaining := limit.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Limited:    count > int64(limit.MaxRequests),
		Limit:      limit.MaxRequests,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		ResetAt:    resetAt,
	}
}

// RateLimitedError converts a limiting decision into the tagged error
// surfaced to clients.
func RateLimitedError(d Decision) *core.Error {
	err := core.E(core.KindRateLimited, core.CodeRateLimited, "too many requests")
	err.RetryAfter = d.RetryAfter
	return err
}

// Brute force detection defaults.
const (
	DefaultBruteForceThreshold = 100
	DefaultBruteForceWindow    = time.Hour
)

// BruteForceGuard counts raw authentication attempts per client IP over a
// long window, independent of per-endpoint limits. It catches attempts
// spread across endpoints that each stay under their own budget.
type BruteForceGuard struct {
	store     ports.RateLimitStore
	audit     *AuditService
	threshold int
	window    time.Duration
	log       *zap.Logger
}

func NewBruteForceGuard(store ports.RateLimitStore, audit *AuditService, threshold int, window time.Duration, log *zap.Logger) *BruteForceGuard {
	if threshold <= 0 {
		threshold = DefaultBruteForceThreshold
	}
	if window <= 0 {
		window = DefaultBruteForceWindow
	}
	return &BruteForceGuard{
		store:     store,
		audit:     audit,
		threshold: threshold,
		window:    window,
		log:       log,
	}
}

// RecordAttempt counts one attempt for the IP and reports whether the
// threshold is exceeded. Store failures fail closed.
func (g *BruteForceGuard) RecordAttempt(ctx context.Context, ip string) bool {
	count, _, err := g.store.Incr(ctx, "bruteforce:"+ip, g.window, int64(g.threshold))
	if err != nil {
		g.log.Warn("brute force store unavailable, failing closed", zap.Error(err))
		return true
	}
	if count <= int64(g.threshold) {
		return false
	}
	g.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeSecurity,
		Action:    core.ActionBruteForceDetected,
		Status:    core.AuditFailure,
		Details:   map[string]string{"window": g.window.String()},
		IPAddress: ip,
	})
	return true
}
