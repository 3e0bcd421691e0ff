package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// DefaultChallengeTTL bounds how long a challenge stays signable.
const DefaultChallengeTTL = 5 * time.Minute

// RequestMeta carries per-request identity used for audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

// ChallengeConfig controls the signable message content.
type ChallengeConfig struct {
	Domain    string // e.g. "sso.example.org"
	AppURI    string // e.g. "https://sso.example.org"
	Statement string
	ChainID   string // default chain identifier, e.g. "polkadot"
	TTL       time.Duration
}

// ChallengeService creates and consumes single-use authentication
// challenges.
type ChallengeService struct {
	store    ports.ChallengeStore
	registry ports.ClientRegistry
	audit    *AuditService
	nonces   NonceSource
	cfg      ChallengeConfig
	log      *zap.Logger
}

func NewChallengeService(
	store ports.ChallengeStore,
	registry ports.ClientRegistry,
	audit *AuditService,
	cfg ChallengeConfig,
	log *zap.Logger,
) *ChallengeService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultChallengeTTL
	}
	if cfg.Statement == "" {
		cfg.Statement = "Sign this message to authenticate with your wallet."
	}
	if cfg.ChainID == "" {
		cfg.ChainID = "polkadot"
	}
	return &ChallengeService{
		store:    store,
		registry: registry,
		audit:    audit,
		cfg:      cfg,
		log:      log,
	}
}

// Create issues a challenge for the given client and optional address.
func (s *ChallengeService) Create(ctx context.Context, clientID, address string, meta RequestMeta) (*core.Challenge, error) {
	if clientID == "" {
		return nil, core.E(core.KindValidation, core.CodeInvalidRequest, "client_id is required")
	}
	if _, err := s.registry.Resolve(ctx, clientID); err != nil {
		// Unknown client is a caller mistake, not a missing resource.
		return nil, core.E(core.KindValidation, core.CodeUnknownClient, "client_id is not registered")
	}

	nonce, err := s.nonces.Issue()
	if err != nil {
		return nil, core.Internal("failed to generate nonce", err)
	}
	verifier, err := s.nonces.Verifier()
	if err != nil {
		return nil, core.Internal("failed to generate code verifier", err)
	}
	state, err := s.nonces.State()
	if err != nil {
		return nil, core.Internal("failed to generate state", err)
	}

	now := time.Now()
	challenge := &core.Challenge{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		Address:       address,
		Nonce:         nonce,
		CodeVerifier:  verifier,
		CodeChallenge: PKCEChallenge(verifier),
		State:         state,
		ChainID:       s.cfg.ChainID,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.TTL),
	}
	challenge.Message = s.buildMessage(challenge)

	if err := s.store.Save(ctx, challenge); err != nil {
		return nil, core.Internal("failed to persist challenge", err)
	}

	s.audit.Log(&core.AuditEvent{
		Type:      core.AuditTypeAuthAttempt,
		ClientID:  clientID,
		Address:   address,
		Action:    core.ActionChallengeIssued,
		Status:    core.AuditSuccess,
		Details:   map[string]string{"challenge_id": challenge.ID, "request_id": meta.RequestID},
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	})
	return challenge, nil
}

// Consume atomically marks the challenge used. Exactly one concurrent
// caller succeeds; the rest observe a replay error.
func (s *ChallengeService) Consume(ctx context.Context, id string) (*core.Challenge, error) {
	return s.store.Consume(ctx, id, time.Now())
}

// SweepExpired removes challenges past their TTL.
func (s *ChallengeService) SweepExpired(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, time.Now())
}

// buildMessage renders the signable statement. The line order is part of
// the wire contract: wallets sign these exact bytes and verification
// compares them byte for byte.
func (s *ChallengeService) buildMessage(c *core.Challenge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Polkadot account:\n", s.cfg.Domain)
	fmt.Fprintf(&b, "%s\n", c.Address)
	fmt.Fprintf(&b, "\n%s\n\n", s.cfg.Statement)
	fmt.Fprintf(&b, "URI: %s\n", s.cfg.AppURI)
	fmt.Fprintf(&b, "Version: 1\n")
	fmt.Fprintf(&b, "Chain ID: %s\n", c.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", c.Nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", c.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Expiration Time: %s", c.ExpiresAt.UTC().Format(time.RFC3339))
	return b.String()
}

// PKCEChallenge derives the code challenge from a verifier:
// BASE64URL(SHA256(verifier)).
func PKCEChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
