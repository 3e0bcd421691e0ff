package ports

import (
	"context"
	"time"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// ChallengeStore persists single-use authentication challenges
type ChallengeStore interface {
	// Save persists a new challenge.
	Save(ctx context.Context, challenge *core.Challenge) error

	// Get returns the challenge or a KindNotFound error.
	Get(ctx context.Context, id string) (*core.Challenge, error)

	// Consume atomically marks the challenge used and returns it. Under
	// concurrent calls for the same id exactly one caller succeeds; the
	// rest observe a KindReplay error. Expired challenges fail with
	// KindExpired without flipping the used flag.
	Consume(ctx context.Context, id string, now time.Time) (*core.Challenge, error)

	// DeleteExpired removes challenges past their TTL and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// SessionStore persists authenticated sessions
type SessionStore interface {
	// Save upserts the session record.
	Save(ctx context.Context, session *core.Session) error

	// Get returns the session or a KindNotFound error.
	Get(ctx context.Context, id string) (*core.Session, error)

	// GetActive returns the active session for (address, client), or a
	// KindNotFound error when there is none.
	GetActive(ctx context.Context, address, clientID string) (*core.Session, error)

	// Deactivate clears is_active. Deactivating an unknown or already
	// inactive session is a no-op.
	Deactivate(ctx context.Context, id string) error

	// DeleteExpired removes sessions whose refresh expiry passed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// DenylistStore tracks revoked token ids until their natural expiry
type DenylistStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RateLimitStore keeps fixed-window counters. Increments are atomic; a
// counter saturates at limit+1 so a flooded window stops growing while a
// count above limit stays observable.
type RateLimitStore interface {
	// Incr bumps the counter for key, creating a fresh window on first hit
	// or after rollover. Returns the post-call count and the window reset
	// time.
	Incr(ctx context.Context, key string, window time.Duration, limit int64) (count int64, resetAt time.Time, err error)
}

// AuditStore is the append-only persistence behind the audit service
type AuditStore interface {
	Append(ctx context.Context, event *core.AuditEvent) error
	Query(ctx context.Context, filter core.AuditFilter, limit int) ([]*core.AuditEvent, error)
	Stats(ctx context.Context) (*core.AuditStats, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
