package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// SessionService owns the session lifecycle: creation after a verified
// challenge, refresh rotation, revocation and lazy expiry.
type SessionService struct {
	store  ports.SessionStore
	tokens *TokenService
	audit  *AuditService
	events ports.EventPublisher
	nonces NonceSource
	log    *zap.Logger
}

func NewSessionService(
	store ports.SessionStore,
	tokens *TokenService,
	audit *AuditService,
	events ports.EventPublisher,
	log *zap.Logger,
) *SessionService {
	return &SessionService{
		store:  store,
		tokens: tokens,
		audit:  audit,
		events: events,
		log:    log,
	}
}

// Create mints a fingerprint and token pair and persists the session. At
// most one session per (address, client) stays active: a previous one is
// revoked first.
func (s *SessionService) Create(ctx context.Context, address, clientID string, meta RequestMeta) (*core.Session, *core.TokenPair, error) {
	prev, err := s.store.GetActive(ctx, address, clientID)
	switch {
	case err == nil:
		s.revoke(ctx, prev, "superseded by new login", meta)
	case !core.IsKind(err, core.KindNotFound):
		// A store failure here must not block login, but it is not the
		// same as "no previous session".
		s.log.Warn("active session lookup failed, skipping supersede",
			zap.String("address", address),
			zap.String("client_id", clientID),
			zap.Error(err))
	}

	fingerprint, err := s.nonces.Fingerprint()
	if err != nil {
		return nil, nil, core.Internal("failed to mint fingerprint", err)
	}

	now := time.Now()
	session := &core.Session{
		ID:          uuid.NewString(),
		Address:     address,
		ClientID:    clientID,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		LastUsedAt:  now,
		IsActive:    true,
	}

	pair, err := s.tokens.GeneratePair(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	session.AccessTokenID = pair.AccessJTI
	session.RefreshTokenID = pair.RefreshJTI
	session.AccessTokenExpiresAt = pair.AccessTokenExpiresAt
	session.RefreshTokenExpiresAt = pair.RefreshTokenExpiresAt

	if err := s.store.Save(ctx, session); err != nil {
		return nil, nil, core.Internal("failed to persist session", err)
	}
	return session, &pair.TokenPair, nil
}

// Refresh rotates the token pair of the session named by a verified refresh
// payload. A fingerprint or jti mismatch revokes the session outright.
func (s *SessionService) Refresh(ctx context.Context, payload *core.TokenPayload, meta RequestMeta) (*core.Session, *core.TokenPair, error) {
	session, err := s.store.Get(ctx, payload.SessionID)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			return nil, nil, core.E(core.KindInvalidSession, core.CodeSessionNotFound, "session not found")
		}
		return nil, nil, err
	}
	if !session.IsActive {
		return nil, nil, core.E(core.KindInvalidSession, core.CodeSessionInactive, "session is no longer active")
	}
	if session.Fingerprint != payload.Fingerprint {
		return nil, nil, core.E(core.KindInvalidSession, core.CodeFingerprint, "token fingerprint does not match session")
	}
	if payload.JTI != session.RefreshTokenID {
		// An already-rotated refresh token came back: assume the token
		// leaked and kill the whole session chain.
		s.RevokeForReuse(ctx, payload, meta)
		return nil, nil, core.E(core.KindInvalidSession, core.CodeRefreshReuse, "refresh token reuse detected")
	}
	now := time.Now()
	if now.After(session.RefreshTokenExpiresAt) {
		_ = s.store.Deactivate(ctx, session.ID)
		return nil, nil, core.E(core.KindExpired, core.CodeTokenExpired, "refresh capability has expired")
	}

	// Rotate both halves; the outgoing jtis stay revoked for the rest of
	// their natural lifetime.
	if err := s.tokens.Revoke(ctx, session.RefreshTokenID, session.RefreshTokenExpiresAt); err != nil {
		return nil, nil, core.Internal("failed to retire refresh token", err)
	}
	if err := s.tokens.Revoke(ctx, session.AccessTokenID, session.AccessTokenExpiresAt); err != nil {
		return nil, nil, core.Internal("failed to retire access token", err)
	}

	pair, err := s.tokens.GeneratePair(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	session.AccessTokenID = pair.AccessJTI
	session.RefreshTokenID = pair.RefreshJTI
	session.AccessTokenExpiresAt = pair.AccessTokenExpiresAt
	session.LastUsedAt = now

	if err := s.store.Save(ctx, session); err != nil {
		return nil, nil, core.Internal("failed to persist session", err)
	}
	return session, &pair.TokenPair, nil
}

// Invalidate clears is_active. Invalidating an unknown or already inactive
// session is a no-op success.
func (s *SessionService) Invalidate(ctx context.Context, sessionID string) error {
	if err := s.store.Deactivate(ctx, sessionID); err != nil {
		return core.Internal("failed to deactivate session", err)
	}
	return nil
}

// Get loads a session by id.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// RevokeForReuse terminates the session referenced by a reused refresh
// token and records the event. Best effort: the caller already rejects the
// request regardless.
func (s *SessionService) RevokeForReuse(ctx context.Context, payload *core.TokenPayload, meta RequestMeta) {
	session, err := s.store.Get(ctx, payload.SessionID)
	if err != nil {
		session = &core.Session{
			ID:       payload.SessionID,
			Address:  payload.Address,
			ClientID: payload.ClientID,
		}
	}
	s.revoke(ctx, session, "refresh token reuse", meta)

	s.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeSecurity,
		ClientID:  payload.ClientID,
		Address:   payload.Address,
		Action:    core.ActionRefreshReuse,
		Status:    core.AuditFailure,
		Details:   map[string]string{"session_id": payload.SessionID, "jti": payload.JTI},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
}

// SweepExpired removes sessions whose refresh capability lapsed.
func (s *SessionService) SweepExpired(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, time.Now())
}

func (s *SessionService) revoke(ctx context.Context, session *core.Session, reason string, meta RequestMeta) {
	if err := s.store.Deactivate(ctx, session.ID); err != nil {
		s.log.Warn("failed to deactivate session", zap.String("session_id", session.ID), zap.Error(err))
	}
	if session.RefreshTokenID != "" {
		if err := s.tokens.Revoke(ctx, session.RefreshTokenID, session.RefreshTokenExpiresAt); err != nil {
			s.log.Warn("failed to revoke refresh token", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	if session.AccessTokenID != "" {
		if err := s.tokens.Revoke(ctx, session.AccessTokenID, session.AccessTokenExpiresAt); err != nil {
			s.log.Warn("failed to revoke access token", zap.String("session_id", session.ID), zap.Error(err))
		}
	}
	if err := s.events.PublishSessionRevoked(ctx, session.Address, session.ID, reason); err != nil {
		// The revocation is already durable in the store; fan-out is
		// advisory.
		s.log.Warn("failed to publish session revocation", zap.String("session_id", session.ID), zap.Error(err))
	}
}
