package domain

import "time"

// RailKind identifies a payout rail. Two rails move money through external
// providers; the manual rail is settled out-of-band by an operator.
type RailKind string

const (
	// RailStripeConnect settles via destination-charge transfers to a
	// connected Stripe account.
	RailStripeConnect RailKind = "stripe_connect"
	// RailSplitPay settles via the marketplace split-payment provider.
	RailSplitPay RailKind = "split_pay"
	// RailManual is a bank/PIX transfer recorded by an operator with a proof.
	RailManual RailKind = "manual"
)

func (r RailKind) Automated() bool {
	return r == RailStripeConnect || r == RailSplitPay
}

func ValidRail(r RailKind) bool {
	return r == RailStripeConnect || r == RailSplitPay || r == RailManual
}

// PayoutAccount is the per-affiliate, per-rail onboarding state.
// PayoutsEnabled is the normalized readiness flag as last observed from the
// rail; each rail's own readiness shape is folded into it by the rail adapter.
type PayoutAccount struct {
	AccountID         string   `json:"account_id"`
	AffiliateID       string   `json:"affiliate_id"`
	Rail              RailKind `json:"rail"`
	ExternalAccountID string   `json:"external_account_id,omitempty"`
	PayoutsEnabled    bool     `json:"payouts_enabled"`
	// FirstReadyAt records the rail's first not-ready -> ready transition.
	// Preferred-rail auto-assignment keys off it exactly once; later polls
	// never silently change an affiliate's preference.
	FirstReadyAt  *time.Time `json:"first_ready_at,omitempty"`
	LastCheckedAt time.Time  `json:"last_checked_at"`
	ConnectedAt   time.Time  `json:"connected_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type PayoutOutcome string

const (
	PayoutOutcomeSuccess          PayoutOutcome = "success"
	PayoutOutcomeRailNotReady     PayoutOutcome = "rail_not_ready"
	PayoutOutcomeNeedsOnboarding  PayoutOutcome = "needs_onboarding"
	PayoutOutcomeTransientFailure PayoutOutcome = "transient_failure"
	PayoutOutcomePermanentFailure PayoutOutcome = "permanent_failure"
)

// PayoutAttempt records one dispatch try against a rail. A commission with a
// successful attempt must never be dispatched again.
type PayoutAttempt struct {
	AttemptID    string        `json:"attempt_id"`
	CommissionID string        `json:"commission_id"`
	Rail         RailKind      `json:"rail"`
	Outcome      PayoutOutcome `json:"outcome"`
	TransferID   string        `json:"transfer_id,omitempty"`
	Message      string        `json:"message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// RailStatus is the normalized readiness answer from a rail's status API.
type RailStatus struct {
	Connected      bool `json:"connected"`
	PayoutsEnabled bool `json:"payouts_enabled"`
}
