package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/CoachCoe/polkadot-sso-sub005/ports"
)

// SecurityEventTopic carries session lifecycle notifications to other
// instances.
const SecurityEventTopic = "sso.security"

// SecurityEvent is the wire form of a session lifecycle notification
type SecurityEvent struct {
	Kind      string `json:"kind"` // "logout" or "session_revoked"
	Address   string `json:"address"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// WatermillPublisher implements ports.EventPublisher on a watermill
// message.Publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     SecurityEventTopic,
	}
}

func (p *WatermillPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	return p.publish(SecurityEvent{Kind: "logout", Address: address, SessionID: sessionID})
}

func (p *WatermillPublisher) PublishSessionRevoked(ctx context.Context, address, sessionID, reason string) error {
	return p.publish(SecurityEvent{Kind: "session_revoked", Address: address, SessionID: sessionID, Reason: reason})
}

func (p *WatermillPublisher) publish(event SecurityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishLogout(ctx context.Context, address, sessionID string) error {
	return nil
}

func (NopPublisher) PublishSessionRevoked(ctx context.Context, address, sessionID, reason string) error {
	return nil
}
