package providers

import (
	"context"

	"github.com/meditrace/ccam-assist/internal/domain/entities"
)

// EventBus distributes operator alerts (abandoned anchors, integrity
// divergences) to subscribers.
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.AuditEvent) error

	// Subscribe subscribes to events on a channel; the returned channel
	// closes when ctx is done or the bus shuts down.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AuditEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// AlertsChannel is the channel operator alerts are published on.
const AlertsChannel = "audit:alerts"
