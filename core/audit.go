package core

import "time"

// AuditEventType groups audit events into broad security categories
type AuditEventType string

const (
	AuditTypeAuthAttempt   AuditEventType = "AUTH_ATTEMPT"
	AuditTypeTokenExchange AuditEventType = "TOKEN_EXCHANGE"
	AuditTypeSession       AuditEventType = "SESSION_MANAGEMENT"
	AuditTypeSecurity      AuditEventType = "SECURITY_EVENT"
)

// AuditStatus is the outcome recorded with an event
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// Audit actions recorded by the protocol services.
const (
	ActionChallengeIssued    = "CHALLENGE_ISSUED"
	ActionChallengeVerified  = "CHALLENGE_VERIFIED"
	ActionVerifyFailed       = "VERIFY_FAILED"
	ActionTokenRefreshed     = "TOKEN_REFRESHED"
	ActionRefreshFailed      = "REFRESH_FAILED"
	ActionLogout             = "LOGOUT"
	ActionSessionRevoked     = "SESSION_REVOKED"
	ActionRefreshReuse       = "REFRESH_REUSE_DETECTED"
	ActionRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ActionBruteForceDetected = "BRUTE_FORCE_DETECTED"
)

// AuditEvent is a single append-only record of a security-relevant action.
// Events are never mutated; retention cleanup is the only deletion path.
type AuditEvent struct {
	Type      AuditEventType    `json:"type"`
	ClientID  string            `json:"client_id,omitempty"`
	Address   string            `json:"address,omitempty"`
	Action    string            `json:"action"`
	Status    AuditStatus       `json:"status"`
	Details   map[string]string `json:"details,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AuditFilter narrows an audit query. Zero values match everything.
type AuditFilter struct {
	Type     AuditEventType
	ClientID string
	Address  string
	Action   string
	Status   AuditStatus
	Since    time.Time
}

// Matches reports whether the event satisfies every set filter field.
func (f AuditFilter) Matches(e *AuditEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.ClientID != "" && e.ClientID != f.ClientID {
		return false
	}
	if f.Address != "" && e.Address != f.Address {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// AuditStats is an aggregate view over the retained audit log
type AuditStats struct {
	Total    int            `json:"total"`
	ByAction map[string]int `json:"by_action"`
	ByStatus map[string]int `json:"by_status"`
	Oldest   time.Time      `json:"oldest,omitempty"`
	Newest   time.Time      `json:"newest,omitempty"`
}
