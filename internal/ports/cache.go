package ports

import (
	"context"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
)

// EventDedupStore remembers processed inbound event ids so webhook redelivery
// becomes a no-op before any state transition is attempted.
type EventDedupStore interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

// RailStatusCache bounds status-API traffic for the payment-methods endpoint.
// The persisted payout account row stays the source of truth; the cache only
// short-circuits repeated reads.
type RailStatusCache interface {
	Get(ctx context.Context, affiliateID string, rail domain.RailKind) (*domain.RailStatus, error)
	Set(ctx context.Context, affiliateID string, rail domain.RailKind, status domain.RailStatus, ttl time.Duration) error
}
