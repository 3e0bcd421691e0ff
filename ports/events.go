package ports

import "context"

// EventPublisher notifies other instances about session lifecycle events
type EventPublisher interface {
	// PublishLogout announces a voluntary session termination.
	PublishLogout(ctx context.Context, address, sessionID string) error

	// PublishSessionRevoked announces a forced termination, e.g. after
	// refresh token reuse detection.
	PublishSessionRevoked(ctx context.Context, address, sessionID, reason string) error
}
