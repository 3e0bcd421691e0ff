package ports

import "github.com/CoachCoe/polkadot-sso-sub005/core"

// Tokenizer converts between token payloads and signed tokens
type Tokenizer interface {
	// Mint signs the payload. The issuer claim is supplied by the
	// tokenizer; the audience is the payload's client id.
	Mint(payload *core.TokenPayload) (string, error)

	// Parse validates signature, issuer and expiry and checks that the
	// embedded type matches typ. Structurally invalid tokens fail with a
	// KindInvalidSession error; recognized-but-expired tokens fail with
	// KindExpired so callers can tell "retry with refresh" from "reject".
	Parse(token string, typ core.TokenType) (*core.TokenPayload, error)
}
