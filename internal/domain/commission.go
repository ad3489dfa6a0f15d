package domain

import (
	"strings"
	"time"
)

type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusApproved  CommissionStatus = "approved"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
)

// Commission is the authoritative money-owed record for one (affiliate, order)
// pair. OrderTotal, Currency, PolicyKind, PolicyValue and Amount are snapshots
// taken at creation and never updated afterwards; a miscomputed commission is
// corrected by cancel-and-recreate so the audit trail survives.
type Commission struct {
	CommissionID string           `json:"commission_id"`
	AffiliateID  string           `json:"affiliate_id"`
	OrderID      string           `json:"order_id"`
	OrderTotal   float64          `json:"order_total"`
	Currency     string           `json:"currency"`
	PolicyKind   PolicyKind       `json:"policy_kind"`
	PolicyValue  float64          `json:"policy_value"`
	Amount       float64          `json:"amount"`
	Status       CommissionStatus `json:"status"`
	// Method is the rail chosen or attempted for settlement.
	Method RailKind `json:"method,omitempty"`
	// ProofRef is the rail transfer id or a manual proof reference. A paid
	// commission must always carry one.
	ProofRef             string     `json:"proof_ref,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	RequiresManualReview bool       `json:"requires_manual_review"`
	FailureMessage       string     `json:"failure_message,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`
}

func (c Commission) IsTerminal() bool {
	return c.Status == CommissionStatusPaid || c.Status == CommissionStatusCancelled
}

// ComputeCommissionAmount applies the affiliate's snapshotted policy to the
// order total: percent of total or fixed value, clamped to [0, total] and
// rounded to the currency's minor-unit precision (half up).
func ComputeCommissionAmount(orderTotal float64, currency string, kind PolicyKind, value float64) float64 {
	var raw float64
	switch kind {
	case PolicyKindPercent:
		raw = orderTotal * value / 100
	case PolicyKindFixed:
		raw = value
	default:
		return 0
	}
	if raw < 0 {
		raw = 0
	}
	if raw > orderTotal {
		raw = orderTotal
	}
	return RoundToMinorUnits(raw, currency)
}

// ValidateTransition enforces the commission state machine:
// pending -> approved -> paid, with pending/approved -> cancelled.
// paid and cancelled are terminal; clawback of a paid commission is a manual
// operation outside this engine.
func ValidateTransition(from, to CommissionStatus) error {
	switch from {
	case CommissionStatusPending:
		if to == CommissionStatusApproved || to == CommissionStatusCancelled {
			return nil
		}
	case CommissionStatusApproved:
		if to == CommissionStatusPaid || to == CommissionStatusCancelled {
			return nil
		}
	}
	return ErrInvalidTransition
}

// ValidatePaidProof rejects a paid transition without a proof reference.
func ValidatePaidProof(proofRef string) error {
	if strings.TrimSpace(proofRef) == "" {
		return ErrInvariantViolation
	}
	return nil
}
