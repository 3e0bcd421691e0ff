package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// MinSecretLength is the minimum accepted signing secret length.
const MinSecretLength = 32

// weakFragments are substrings that disqualify a signing secret outright.
// This is a misconfiguration guard, not a strength proof.
var weakFragments = []string{"secret", "password", "changeme", "default", "example"}

// JWTTokenizer implements ports.Tokenizer with HS256 and distinct secrets
// for the access and refresh halves of a token pair.
type JWTTokenizer struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
}

// NewJWTTokenizer validates both secrets and fails construction on weak or
// shared ones. Construction-time failure keeps secret problems fatal at
// startup instead of per-request.
func NewJWTTokenizer(issuer, accessSecret, refreshSecret string) (ports.Tokenizer, error) {
	if issuer == "" {
		return nil, core.E(core.KindValidation, core.CodeInvalidRequest, "token issuer must not be empty")
	}
	if err := ValidateSecret(accessSecret); err != nil {
		return nil, fmt.Errorf("access secret: %w", err)
	}
	if err := ValidateSecret(refreshSecret); err != nil {
		return nil, fmt.Errorf("refresh secret: %w", err)
	}
	if accessSecret == refreshSecret {
		return nil, core.E(core.KindValidation, core.CodeInvalidRequest, "access and refresh secrets must differ")
	}
	return &JWTTokenizer{
		issuer:        issuer,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}, nil
}

// ValidateSecret rejects signing secrets that are too short or match a
// known-weak pattern.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return core.E(core.KindValidation, core.CodeInvalidRequest,
			fmt.Sprintf("signing secret must be at least %d characters", MinSecretLength))
	}
	lower := strings.ToLower(secret)
	for _, fragment := range weakFragments {
		if strings.Contains(lower, fragment) {
			return core.E(core.KindValidation, core.CodeInvalidRequest,
				"signing secret matches a known-weak pattern")
		}
	}
	if repeatsSingleRune(secret) {
		return core.E(core.KindValidation, core.CodeInvalidRequest,
			"signing secret repeats a single character")
	}
	if hasSequentialRun(secret) {
		return core.E(core.KindValidation, core.CodeInvalidRequest,
			"signing secret contains a sequential character run")
	}
	return nil
}

// maxSequentialRun is the longest tolerated run of consecutively ascending
// bytes. "0123456789" and "abcdefgh" style filler exceeds it.
const maxSequentialRun = 7

func hasSequentialRun(s string) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1]+1 {
			run++
			if run > maxSequentialRun {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func repeatsSingleRune(s string) bool {
	runes := []rune(s)
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

// Mint signs the payload with the secret matching its token type.
func (j *JWTTokenizer) Mint(payload *core.TokenPayload) (string, error) {
	secret, err := j.secretFor(payload.Type)
	if err != nil {
		return "", err
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   payload.Address,
			Audience:  jwt.ClaimStrings{payload.ClientID},
			ID:        payload.JTI,
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
		TokenType:   string(payload.Type),
		ClientID:    payload.ClientID,
		SessionID:   payload.SessionID,
		Fingerprint: payload.Fingerprint,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", payload.Type, err)
	}
	return signed, nil
}

// Parse validates the token against the secret for typ and converts its
// claims back into a payload.
func (j *JWTTokenizer) Parse(tokenStr string, typ core.TokenType) (*core.TokenPayload, error) {
	secret, err := j.secretFor(typ)
	if err != nil {
		return nil, err
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(j.issuer))

	if err != nil {
		// A recognized token past its expiry is distinguishable from
		// garbage so callers can suggest a refresh.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.Wrap(core.KindExpired, core.CodeTokenExpired, "token has expired", err)
		}
		return nil, core.Wrap(core.KindInvalidSession, core.CodeTokenInvalid, "token is not valid", err)
	}
	if !token.Valid {
		return nil, core.E(core.KindInvalidSession, core.CodeTokenInvalid, "token is not valid")
	}
	if claims.TokenType != string(typ) {
		return nil, core.E(core.KindInvalidSession, core.CodeTokenWrongType,
			fmt.Sprintf("expected %s token, got %s", typ, claims.TokenType))
	}

	payload := &core.TokenPayload{
		Address:     claims.Subject,
		ClientID:    claims.ClientID,
		Type:        typ,
		JTI:         claims.ID,
		SessionID:   claims.SessionID,
		Fingerprint: claims.Fingerprint,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}

func (j *JWTTokenizer) secretFor(typ core.TokenType) ([]byte, error) {
	switch typ {
	case core.TokenTypeAccess:
		return j.accessSecret, nil
	case core.TokenTypeRefresh:
		return j.refreshSecret, nil
	default:
		return nil, core.E(core.KindValidation, core.CodeInvalidRequest,
			fmt.Sprintf("unknown token type %q", typ))
	}
}
