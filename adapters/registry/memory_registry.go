package registry

import (
	"context"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// MemoryRegistry is a static client registry loaded once from configuration.
type MemoryRegistry struct {
	clients map[string]*core.Client
}

func NewMemoryRegistry(clients []core.Client) ports.ClientRegistry {
	byID := make(map[string]*core.Client, len(clients))
	for i := range clients {
		byID[clients[i].ID] = &clients[i]
	}
	return &MemoryRegistry{clients: byID}
}

func (r *MemoryRegistry) Resolve(ctx context.Context, clientID string) (*core.Client, error) {
	client, ok := r.clients[clientID]
	if !ok {
		return nil, core.E(core.KindNotFound, core.CodeUnknownClient, "unknown client")
	}
	cp := *client
	return &cp, nil
}
