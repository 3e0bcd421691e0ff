package service

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// NonceSource issues cryptographically random values for challenges, PKCE
// verifiers, state parameters and session fingerprints. Uniqueness is
// probabilistic at this entropy; single-use tracking happens at the
// challenge layer.
type NonceSource struct{}

// Issue returns a 32-byte hex nonce.
func (NonceSource) Issue() (string, error) {
	return randomHex(32)
}

// Verifier returns a 32-byte PKCE code verifier, url-safe base64 encoded.
func (NonceSource) Verifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// State returns a 16-byte hex state value.
func (NonceSource) State() (string, error) {
	return randomHex(16)
}

// Fingerprint returns a 16-byte hex session fingerprint.
func (NonceSource) Fingerprint() (string, error) {
	return randomHex(16)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random value: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
