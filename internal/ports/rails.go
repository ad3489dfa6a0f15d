package ports

import (
	"context"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
)

// OnboardingSession is the result of starting rail onboarding: the external
// account created or reused, and where to send the affiliate to finish.
type OnboardingSession struct {
	ExternalAccountID string
	RedirectURL       string
}

type TransferRequest struct {
	CommissionID         string
	Amount               float64
	Currency             string
	DestinationAccountID string
	// IdempotencyKey is derived deterministically from the commission id so
	// the rail deduplicates a retried call even when a true race passes every
	// in-process guard.
	IdempotencyKey string
}

type TransferResult struct {
	TransferID string
}

// PayoutRail is the common capability surface each automated rail implements.
// The dispatcher depends only on this interface, never on rail-specific
// fields; each adapter folds its provider's readiness shape into RailStatus.
type PayoutRail interface {
	Kind() domain.RailKind
	StartOnboarding(ctx context.Context, affiliate domain.Affiliate, existingAccountID string) (OnboardingSession, error)
	CheckReady(ctx context.Context, externalAccountID string) (domain.RailStatus, error)
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
}

// RailError is a typed rail rejection. Permanent means the rail will keep
// rejecting this transfer (frozen or invalid account); everything else,
// including timeouts surfaced as plain errors, is treated as transient.
type RailError struct {
	Code      string
	Message   string
	Permanent bool
}

func (e *RailError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// RailSet resolves rail adapters by kind. The manual rail has no adapter;
// it is settled out-of-band and recorded through the ledger directly.
type RailSet interface {
	Rail(kind domain.RailKind) (PayoutRail, bool)
}
