package ports

import (
	"context"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
)

// AnalyticsPublisher takes the high-volume click feed straight to the
// analytics stream. Ledger events stay on the transactional outbox.
type AnalyticsPublisher interface {
	PublishAnalytics(ctx context.Context, envelope contracts.EventEnvelope) error
}

type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record contracts.DLQRecord) error
}

// EventPublisher is the broker-facing delivery interface used by the outbox
// worker. Broker wiring lives behind it so the worker stays transport-agnostic.
type EventPublisher interface {
	Publish(ctx context.Context, envelope contracts.EventEnvelope) error
}
