package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// minRevokeTTL keeps denylist entries for already-expired tokens around
// briefly so clock skew cannot resurrect them.
const minRevokeTTL = time.Hour

// IssuedPair is a freshly minted token pair plus the jtis embedded in it.
type IssuedPair struct {
	core.TokenPair
	AccessJTI  string
	RefreshJTI string
}

// TokenService mints and validates token pairs bound to a session
// fingerprint, and tracks revoked jtis in a denylist.
type TokenService struct {
	tokenizer  ports.Tokenizer
	denylist   ports.DenylistStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(tokenizer ports.Tokenizer, denylist ports.DenylistStore, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		tokenizer:  tokenizer,
		denylist:   denylist,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL exposes the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// GeneratePair mints an access and refresh token for the session. When the
// session already carries a refresh expiry (rotation) it is honored; the
// refresh capability is never extended past its original deadline.
func (s *TokenService) GeneratePair(ctx context.Context, session *core.Session) (*IssuedPair, error) {
	now := time.Now()
	accessExpiry := now.Add(s.accessTTL)
	refreshExpiry := session.RefreshTokenExpiresAt
	if refreshExpiry.IsZero() {
		refreshExpiry = now.Add(s.refreshTTL)
	}

	pair := &IssuedPair{
		AccessJTI:  uuid.NewString(),
		RefreshJTI: uuid.NewString(),
	}
	pair.AccessTokenExpiresAt = accessExpiry
	pair.RefreshTokenExpiresAt = refreshExpiry

	access, err := s.tokenizer.Mint(&core.TokenPayload{
		Address:     session.Address,
		ClientID:    session.ClientID,
		Type:        core.TokenTypeAccess,
		JTI:         pair.AccessJTI,
		SessionID:   session.ID,
		Fingerprint: session.Fingerprint,
		IssuedAt:    now,
		ExpiresAt:   accessExpiry,
	})
	if err != nil {
		return nil, core.Internal("failed to mint access token", err)
	}
	refresh, err := s.tokenizer.Mint(&core.TokenPayload{
		Address:     session.Address,
		ClientID:    session.ClientID,
		Type:        core.TokenTypeRefresh,
		JTI:         pair.RefreshJTI,
		SessionID:   session.ID,
		Fingerprint: session.Fingerprint,
		IssuedAt:    now,
		ExpiresAt:   refreshExpiry,
	})
	if err != nil {
		return nil, core.Internal("failed to mint refresh token", err)
	}

	pair.AccessToken = access
	pair.RefreshToken = refresh
	return pair, nil
}

// VerifyAccess validates an access token and checks its jti against the
// denylist. Expired tokens fail with KindExpired; everything else invalid
// fails with KindInvalidSession.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (*core.TokenPayload, error) {
	return s.verify(ctx, token, core.TokenTypeAccess)
}

// VerifyRefresh validates a refresh token. A structurally valid token whose
// jti has been revoked returns the payload alongside a CodeTokenRevoked
// error so callers can run reuse detection on the session it names.
func (s *TokenService) VerifyRefresh(ctx context.Context, token string) (*core.TokenPayload, error) {
	return s.verify(ctx, token, core.TokenTypeRefresh)
}

func (s *TokenService) verify(ctx context.Context, token string, typ core.TokenType) (*core.TokenPayload, error) {
	payload, err := s.tokenizer.Parse(token, typ)
	if err != nil {
		return nil, err
	}
	revoked, err := s.denylist.IsRevoked(ctx, payload.JTI)
	if err != nil {
		return nil, core.Internal("failed to check token revocation", err)
	}
	if revoked {
		return payload, core.E(core.KindInvalidSession, core.CodeTokenRevoked, "token has been revoked")
	}
	return payload, nil
}

// Revoke denylists a jti until the token's natural expiry.
func (s *TokenService) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < minRevokeTTL {
		ttl = minRevokeTTL
	}
	return s.denylist.Revoke(ctx, jti, ttl)
}

// IsRevoked reports whether a jti is on the denylist.
func (s *TokenService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.denylist.IsRevoked(ctx, jti)
}
