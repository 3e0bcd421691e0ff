package core

import "time"

// Challenge represents a time-boxed, single-use authentication challenge
type Challenge struct {
	ID            string    // Unique identifier for the challenge
	ClientID      string    // Registered client the challenge was issued for
	Address       string    // Wallet address the challenge is bound to (optional)
	Message       string    // Human-readable message presented to the wallet for signing
	Nonce         string    // Random nonce embedded in the message
	CodeVerifier  string    // PKCE verifier, returned to the client once
	CodeChallenge string    // BASE64URL(SHA256(code_verifier))
	State         string    // Opaque state value echoed back on verify
	ChainID       string    // Chain identifier embedded in the message
	CreatedAt     time.Time // When the challenge was created
	ExpiresAt     time.Time // When the challenge expires
	Used          bool      // Flips false->true exactly once on consumption
}

// Expired reports whether the challenge is past its TTL at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Session represents an authenticated wallet session
type Session struct {
	ID                    string    // Unique session identifier
	Address               string    // Wallet address of the user
	ClientID              string    // Client the session belongs to
	AccessTokenID         string    // jti of the current access token
	RefreshTokenID        string    // jti of the current refresh token
	Fingerprint           string    // Random value embedded in both tokens
	AccessTokenExpiresAt  time.Time // Expiry of the current access token
	RefreshTokenExpiresAt time.Time // Absolute expiry of the refresh capability
	CreatedAt             time.Time // When the session was created
	LastUsedAt            time.Time // Updated on every refresh
	IsActive              bool      // Cleared on logout, revocation or reuse detection
}

// TokenType distinguishes the two halves of a token pair
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenPayload is the decoded claim set of an issued token. It is encoded
// into the JWT, never stored.
type TokenPayload struct {
	Address     string
	ClientID    string
	Type        TokenType
	JTI         string
	SessionID   string
	Fingerprint string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenPair is the result of a successful verify or refresh
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// Client is a registered SSO client application
type Client struct {
	ID             string   `json:"client_id"`
	Secret         string   `json:"client_secret,omitempty"`
	Name           string   `json:"name,omitempty"`
	RedirectURL    string   `json:"redirect_url"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}
