package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// Key layout shared by the redis-backed stores.
const (
	challengeKeyPrefix = "sso:challenge:"
	challengeUsedKey   = "sso:challenge:used:"
	sessionKeyPrefix   = "sso:session:"
	sessionActiveKey   = "sso:session:active:"
	denylistKeyPrefix  = "sso:denylist:"
	rateLimitKeyPrefix = "sso:ratelimit:"
)

// challengeGrace keeps expired challenge records around long enough to
// report KindExpired instead of KindNotFound before redis drops the key.
const challengeGrace = time.Hour

// RedisChallengeStore implements ports.ChallengeStore on redis. Single-use
// consumption relies on SET NX of a per-challenge marker key, which is
// atomic across instances.
type RedisChallengeStore struct {
	client *redis.Client
}

func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{client: client}
}

func (s *RedisChallengeStore) Save(ctx context.Context, challenge *core.Challenge) error {
	raw, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}
	ttl := time.Until(challenge.ExpiresAt) + challengeGrace
	if err := s.client.Set(ctx, challengeKeyPrefix+challenge.ID, raw, ttl).Err(); err != nil {
		return core.Internal("failed to store challenge", err)
	}
	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, id string) (*core.Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, core.E(core.KindNotFound, core.CodeChallengeNotFound, "challenge not found")
	}
	if err != nil {
		return nil, core.Internal("failed to load challenge", err)
	}
	challenge := &core.Challenge{}
	if err := json.Unmarshal(raw, challenge); err != nil {
		return nil, core.Internal("failed to unmarshal challenge", err)
	}
	used, err := s.client.Exists(ctx, challengeUsedKey+id).Result()
	if err != nil {
		return nil, core.Internal("failed to check challenge usage", err)
	}
	challenge.Used = used > 0
	return challenge, nil
}

func (s *RedisChallengeStore) Consume(ctx context.Context, id string, now time.Time) (*core.Challenge, error) {
	challenge, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if challenge.Expired(now) {
		return nil, core.E(core.KindExpired, core.CodeChallengeExpired, "challenge has expired")
	}
	if challenge.Used {
		return nil, core.E(core.KindReplay, core.CodeChallengeReplay, "challenge has already been used")
	}

	ttl := time.Until(challenge.ExpiresAt) + challengeGrace
	won, err := s.client.SetNX(ctx, challengeUsedKey+id, "1", ttl).Result()
	if err != nil {
		return nil, core.Internal("failed to consume challenge", err)
	}
	if !won {
		// A concurrent verify attempt flipped the marker first.
		return nil, core.E(core.KindReplay, core.CodeChallengeReplay, "challenge has already been used")
	}
	challenge.Used = true
	return challenge, nil
}

// DeleteExpired is a no-op: redis key TTLs handle removal.
func (s *RedisChallengeStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// RedisSessionStore implements ports.SessionStore on redis.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Save(ctx context.Context, session *core.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := time.Until(session.RefreshTokenExpiresAt) + challengeGrace
	if ttl <= 0 {
		ttl = challengeGrace
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, raw, ttl).Err(); err != nil {
		return core.Internal("failed to store session", err)
	}

	indexKey := sessionActiveKey + activeKey(session.Address, session.ClientID)
	if session.IsActive {
		if err := s.client.Set(ctx, indexKey, session.ID, ttl).Err(); err != nil {
			return core.Internal("failed to index session", err)
		}
		return nil
	}
	current, err := s.client.Get(ctx, indexKey).Result()
	if err == nil && current == session.ID {
		_ = s.client.Del(ctx, indexKey).Err()
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*core.Session, error) {
	raw, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, core.E(core.KindNotFound, core.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, core.Internal("failed to load session", err)
	}
	session := &core.Session{}
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, core.Internal("failed to unmarshal session", err)
	}
	return session, nil
}

func (s *RedisSessionStore) GetActive(ctx context.Context, address, clientID string) (*core.Session, error) {
	id, err := s.client.Get(ctx, sessionActiveKey+activeKey(address, clientID)).Result()
	if err == redis.Nil {
		return nil, core.E(core.KindNotFound, core.CodeSessionNotFound, "no active session")
	}
	if err != nil {
		return nil, core.Internal("failed to resolve active session", err)
	}
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive {
		return nil, core.E(core.KindNotFound, core.CodeSessionNotFound, "no active session")
	}
	return session, nil
}

func (s *RedisSessionStore) Deactivate(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			return nil
		}
		return err
	}
	if !session.IsActive {
		return nil
	}
	session.IsActive = false
	return s.Save(ctx, session)
}

// DeleteExpired is a no-op: redis key TTLs handle removal.
func (s *RedisSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

// RedisDenylistStore implements ports.DenylistStore using keys with TTLs
// equal to the revoked token's remaining lifetime.
type RedisDenylistStore struct {
	client *redis.Client
}

func NewRedisDenylistStore(client *redis.Client) *RedisDenylistStore {
	return &RedisDenylistStore{client: client}
}

func (s *RedisDenylistStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return core.Internal("failed to revoke token", err)
	}
	return nil
}

func (s *RedisDenylistStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, core.Internal("failed to check token revocation", err)
	}
	return n > 0, nil
}

// rateLimitScript increments the window counter atomically, starting the
// window on first hit and capping the count at limit+1 so a saturated
// window never grows.
var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local cap = tonumber(ARGV[2]) + 1
if count > cap then
	redis.call("DECR", KEYS[1])
	count = cap
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisRateLimitStore implements ports.RateLimitStore with a Lua script so
// increments stay atomic across instances.
type RedisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Incr(ctx context.Context, key string, window time.Duration, limit int64) (int64, time.Time, error) {
	res, err := rateLimitScript.Run(ctx, s.client,
		[]string{rateLimitKeyPrefix + key},
		window.Milliseconds(), limit,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, core.Internal("failed to increment rate counter", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, core.Internal("unexpected rate counter reply", nil)
	}
	count, ttlMs := res[0], res[1]
	resetAt := time.Now().Add(window)
	if ttlMs > 0 {
		resetAt = time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	}
	return count, resetAt, nil
}
