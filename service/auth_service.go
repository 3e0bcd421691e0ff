package service

import (
	"context"
	"crypto/subtle"

	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/internal/substrate"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// SignatureVerifier is the pure-function boundary to the wallet crypto
// capability. It must return false, never panic or error, for malformed
// input.
type SignatureVerifier func(message, signature, address string) bool

// AuthService orchestrates the challenge-verify-session protocol on top of
// the narrower services.
type AuthService struct {
	challenges *ChallengeService
	sessions   *SessionService
	tokens     *TokenService
	registry   ports.ClientRegistry
	audit      *AuditService
	limiter    *RateLimiter
	events     ports.EventPublisher
	verify     SignatureVerifier
	log        *zap.Logger
}

func NewAuthService(
	challenges *ChallengeService,
	sessions *SessionService,
	tokens *TokenService,
	registry ports.ClientRegistry,
	audit *AuditService,
	limiter *RateLimiter,
	events ports.EventPublisher,
	verify SignatureVerifier,
	log *zap.Logger,
) *AuthService {
	if verify == nil {
		verify = substrate.Verify
	}
	return &AuthService{
		challenges: challenges,
		sessions:   sessions,
		tokens:     tokens,
		registry:   registry,
		audit:      audit,
		limiter:    limiter,
		events:     events,
		verify:     verify,
		log:        log,
	}
}

// Challenges exposes the challenge service for transport wiring.
func (s *AuthService) Challenges() *ChallengeService { return s.challenges }

// AccessTTL exposes the access token lifetime for response bodies.
func (s *AuthService) AccessTTL() int64 { return int64(s.tokens.AccessTTL().Seconds()) }

// VerifyRequest is the input to the verify step.
type VerifyRequest struct {
	ChallengeID  string `json:"challenge_id" binding:"required"`
	CodeVerifier string `json:"code_verifier" binding:"required"`
	State        string `json:"state" binding:"required"`
	Signature    string `json:"signature" binding:"required"`
	Address      string `json:"address" binding:"required"`
	Message      string `json:"message" binding:"required"`
}

// Verify consumes the challenge, checks PKCE, state and the wallet
// signature, and on success opens a session with a fresh token pair.
func (s *AuthService) Verify(ctx context.Context, req VerifyRequest, meta RequestMeta) (*core.Session, *core.TokenPair, error) {
	challenge, err := s.challenges.Consume(ctx, req.ChallengeID)
	if err != nil {
		s.auditVerifyFailure(req, meta, err)
		return nil, nil, err
	}

	if err := s.checkChallenge(challenge, req); err != nil {
		s.auditVerifyFailure(req, meta, err)
		return nil, nil, err
	}

	if !s.verify(challenge.Message, req.Signature, req.Address) {
		err := core.E(core.KindInvalidSignature, core.CodeInvalidSignature, "signature verification failed")
		s.auditVerifyFailure(req, meta, err)
		return nil, nil, err
	}

	session, pair, err := s.sessions.Create(ctx, req.Address, challenge.ClientID, meta)
	if err != nil {
		s.auditVerifyFailure(req, meta, err)
		return nil, nil, err
	}

	s.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeAuthAttempt,
		ClientID:  challenge.ClientID,
		Address:   req.Address,
		Action:    core.ActionChallengeVerified,
		Status:    core.AuditSuccess,
		Details:   map[string]string{"challenge_id": challenge.ID, "session_id": session.ID, "request_id": meta.RequestID},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return session, pair, nil
}

func (s *AuthService) checkChallenge(challenge *core.Challenge, req VerifyRequest) error {
	if challenge.Address != "" && challenge.Address != req.Address {
		return core.E(core.KindValidation, core.CodeAddressMismatch, "address does not match challenge")
	}
	if subtle.ConstantTimeCompare([]byte(challenge.State), []byte(req.State)) != 1 {
		return core.E(core.KindValidation, core.CodeStateMismatch, "state does not match challenge")
	}
	derived := PKCEChallenge(req.CodeVerifier)
	if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge.CodeChallenge)) != 1 {
		return core.E(core.KindValidation, core.CodePKCEMismatch, "code verifier does not match challenge")
	}
	// The signed message must be the stored bytes exactly; a trimmed or
	// re-encoded copy is rejected rather than repaired.
	if req.Message != challenge.Message {
		return core.E(core.KindInvalidSignature, core.CodeMessageMismatch, "message does not match issued challenge")
	}
	return nil
}

// RefreshRequest is the input to the token refresh grant.
type RefreshRequest struct {
	GrantType    string `json:"grant_type" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
	ClientID     string `json:"client_id" binding:"required"`
	ClientSecret string `json:"client_secret"`
}

// Refresh validates the refresh grant and rotates the session's token
// pair. Presenting an already-rotated refresh token revokes the session.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest, meta RequestMeta) (*core.Session, *core.TokenPair, error) {
	if req.GrantType != "refresh_token" {
		return nil, nil, core.E(core.KindValidation, core.CodeInvalidRequest, "unsupported grant_type")
	}
	client, err := s.registry.Resolve(ctx, req.ClientID)
	if err != nil {
		return nil, nil, core.E(core.KindValidation, core.CodeUnknownClient, "client_id is not registered")
	}
	if client.Secret != "" &&
		subtle.ConstantTimeCompare([]byte(client.Secret), []byte(req.ClientSecret)) != 1 {
		return nil, nil, core.E(core.KindInvalidSession, core.CodeClientSecret, "client credentials rejected")
	}

	if d := s.limiter.Record(ctx, "client:"+req.ClientID, EndpointRefresh); d.Limited {
		return nil, nil, RateLimitedError(d)
	}

	payload, err := s.tokens.VerifyRefresh(ctx, req.RefreshToken)
	if err != nil {
		if payload != nil && core.CodeOf(err) == core.CodeTokenRevoked {
			// Valid signature over a revoked jti: the token was already
			// rotated away, so treat this as reuse and kill the session.
			s.sessions.RevokeForReuse(ctx, payload, meta)
			err = core.E(core.KindInvalidSession, core.CodeRefreshReuse, "refresh token reuse detected")
		}
		s.auditRefreshFailure(req.ClientID, payload, meta, err)
		return nil, nil, err
	}
	if payload.ClientID != req.ClientID {
		err := core.E(core.KindInvalidSession, core.CodeTokenInvalid, "token was not issued to this client")
		s.auditRefreshFailure(req.ClientID, payload, meta, err)
		return nil, nil, err
	}

	session, pair, err := s.sessions.Refresh(ctx, payload, meta)
	if err != nil {
		s.auditRefreshFailure(req.ClientID, payload, meta, err)
		return nil, nil, err
	}

	s.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeTokenExchange,
		ClientID:  req.ClientID,
		Address:   session.Address,
		Action:    core.ActionTokenRefreshed,
		Status:    core.AuditSuccess,
		Details:   map[string]string{"session_id": session.ID, "request_id": meta.RequestID},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return session, pair, nil
}

// Authenticate validates a bearer access token against its session and
// fingerprint. Used by the transport middleware.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*core.Session, *core.TokenPayload, error) {
	payload, err := s.tokens.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.Get(ctx, payload.SessionID)
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
	return session, payload, nil
}

// Logout invalidates the session behind an authenticated access token and
// revokes both of its jtis. Idempotent: repeating it is a no-op success.
func (s *AuthService) Logout(ctx context.Context, session *core.Session, meta RequestMeta) error {
	if err := s.sessions.Invalidate(ctx, session.ID); err != nil {
		return err
	}
	if session.RefreshTokenID != "" {
		if err := s.tokens.Revoke(ctx, session.RefreshTokenID, session.RefreshTokenExpiresAt); err != nil {
			return err
		}
	}
	if session.AccessTokenID != "" {
		if err := s.tokens.Revoke(ctx, session.AccessTokenID, session.AccessTokenExpiresAt); err != nil {
			return err
		}
	}
	if err := s.events.PublishLogout(ctx, session.Address, session.ID); err != nil {
		// The invalidation is already durable; fan-out is advisory.
		s.log.Warn("failed to publish logout event", zap.String("session_id", session.ID), zap.Error(err))
	}
	s.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeSession,
		ClientID:  session.ClientID,
		Address:   session.Address,
		Action:    core.ActionLogout,
		Status:    core.AuditSuccess,
		Details:   map[string]string{"session_id": session.ID, "request_id": meta.RequestID},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}

func (s *AuthService) auditVerifyFailure(req VerifyRequest, meta RequestMeta, err error) {
	s.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeAuthAttempt,
		Address:   req.Address,
		Action:    core.ActionVerifyFailed,
		Status:    core.AuditFailure,
		Details:   map[string]string{"challenge_id": req.ChallengeID, "code": core.CodeOf(err), "request_id": meta.RequestID},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
}

func (s *AuthService) auditRefreshFailure(clientID string, payload *core.TokenPayload, meta RequestMeta, err error) {
	event := &core.AuditEvent{
		Type:      core.AuditTypeTokenExchange,
		ClientID:  clientID,
		Action:    core.ActionRefreshFailed,
		Status:    core.AuditFailure,
		Details:   map[string]string{"code": core.CodeOf(err), "request_id": meta.RequestID},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if payload != nil {
		event.Address = payload.Address
	}
	s.audit.Log(event)
}
