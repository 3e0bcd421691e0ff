package core

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error into one of the protocol failure categories.
// Callers match on the kind rather than on concrete error values.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindExpired
	KindReplay
	KindInvalidSignature
	KindInvalidSession
	KindRateLimited
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindReplay:
		return "replay"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindInvalidSession:
		return "invalid_session"
	case KindRateLimited:
		return "rate_limited"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the tagged error carried across service boundaries. Code is a
// stable machine-readable identifier surfaced to clients; Message is
// human-readable and may be suppressed in release mode for internal errors.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RetryAfter time.Duration // set for KindRateLimited
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a tagged error.
func E(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds a tagged error around a cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Internal wraps an unexpected failure, typically a persistence error.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// KindOf extracts the kind of err, or KindUnknown for untagged errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CodeOf extracts the stable error code, or CodeInternal for untagged errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Stable error codes surfaced to clients and recorded in audit events.
const (
	CodeInternal           = "INTERNAL_ERROR"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnknownClient      = "UNKNOWN_CLIENT"
	CodeClientSecret       = "CLIENT_SECRET_MISMATCH"
	CodeChallengeNotFound  = "CHALLENGE_NOT_FOUND"
	CodeChallengeExpired   = "CHALLENGE_EXPIRED"
	CodeChallengeReplay    = "CHALLENGE_ALREADY_USED"
	CodeAddressMismatch    = "ADDRESS_MISMATCH"
	CodeStateMismatch      = "STATE_MISMATCH"
	CodePKCEMismatch       = "PKCE_MISMATCH"
	CodeMessageMismatch    = "MESSAGE_MISMATCH"
	CodeInvalidSignature   = "INVALID_SIGNATURE"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionInactive    = "SESSION_INACTIVE"
	CodeFingerprint        = "FINGERPRINT_MISMATCH"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeTokenWrongType     = "TOKEN_WRONG_TYPE"
	CodeRefreshReuse       = "REFRESH_REUSE_DETECTED"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeBruteForceDetected = "BRUTE_FORCE_DETECTED"
)
