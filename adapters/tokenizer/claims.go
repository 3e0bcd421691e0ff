package tokenizer

import "github.com/golang-jwt/jwt/v5"

// sessionClaims combines standard claims with the session-binding ones. The
// wallet address travels as the subject and the client id doubles as the
// audience.
type sessionClaims struct {
	jwt.RegisteredClaims
	TokenType   string `json:"type"`
	ClientID    string `json:"client_id"`
	SessionID   string `json:"sid"`
	Fingerprint string `json:"fingerprint"`
}
