package ports

import (
	"context"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// ClientRegistry resolves registered SSO client applications
type ClientRegistry interface {
	// Resolve returns the client or a KindNotFound error for unknown ids.
	Resolve(ctx context.Context, clientID string) (*core.Client, error)
}
