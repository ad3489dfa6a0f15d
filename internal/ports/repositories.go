package ports

import (
	"context"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
)

type AffiliateRepository interface {
	Create(ctx context.Context, row domain.Affiliate) error
	GetByID(ctx context.Context, affiliateID string) (domain.Affiliate, error)
	GetByCode(ctx context.Context, code string) (domain.Affiliate, error)
	Update(ctx context.Context, row domain.Affiliate) error
}

type ClickRepository interface {
	Append(ctx context.Context, row domain.Click) error
	GetByID(ctx context.Context, clickID string) (domain.Click, error)
	MarkConverted(ctx context.Context, clickID string, at time.Time) error
	ListByAffiliateID(ctx context.Context, affiliateID string, limit int) ([]domain.Click, error)
	CountByAffiliateID(ctx context.Context, affiliateID string, convertedOnly bool) (int, error)
}

type CommissionQuery struct {
	Status      domain.CommissionStatus
	AffiliateID string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

type CommissionRepository interface {
	// Create returns domain.ErrConflict when a commission for the same
	// (affiliate, order) pair already exists.
	Create(ctx context.Context, row domain.Commission) error
	GetByID(ctx context.Context, commissionID string) (domain.Commission, error)
	GetByOrderID(ctx context.Context, orderID string) (domain.Commission, error)
	List(ctx context.Context, query CommissionQuery) ([]domain.Commission, int, error)
	// Update persists mutable annotation fields (notes, review flag, failure
	// message, method). It never changes status or snapshot columns.
	Update(ctx context.Context, row domain.Commission) error
	// Transition persists row only while the stored status still equals
	// expect, returning domain.ErrConflict when the guard fails. This is the
	// persisted compare-and-set every concurrent dispatch and reconciliation
	// path serializes through.
	Transition(ctx context.Context, row domain.Commission, expect domain.CommissionStatus) error
	SumByAffiliateAndStatus(ctx context.Context, affiliateID string, status domain.CommissionStatus) (float64, error)
}

type PayoutAccountRepository interface {
	Upsert(ctx context.Context, row domain.PayoutAccount) error
	Get(ctx context.Context, affiliateID string, rail domain.RailKind) (domain.PayoutAccount, error)
	ListByAffiliateID(ctx context.Context, affiliateID string) ([]domain.PayoutAccount, error)
}

type PayoutAttemptRepository interface {
	Append(ctx context.Context, row domain.PayoutAttempt) error
	ListByCommissionID(ctx context.Context, commissionID string) ([]domain.PayoutAttempt, error)
	HasSuccess(ctx context.Context, commissionID string) (bool, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type OutboxRecord struct {
	RecordID     string
	EventClass   string
	Envelope     contracts.EventEnvelope
	CreatedAt    time.Time
	PublishedAt  *time.Time
	RetryCount   int
	LastError    string
	ClaimToken   string
	ClaimUntil   *time.Time
	DeadLettered bool
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	// ClaimUnpublished atomically claims up to limit unpublished, unclaimed
	// records for this worker instance until claimUntil.
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, recordID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, recordID, claimToken, reason string, at time.Time) error
	MarkDeadLettered(ctx context.Context, recordID, claimToken, reason string, at time.Time) error
}
