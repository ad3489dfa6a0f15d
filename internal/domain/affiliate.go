package domain

import (
	"strings"
	"time"
)

type AffiliateStatus string

const (
	AffiliateStatusPending   AffiliateStatus = "pending"
	AffiliateStatusActive    AffiliateStatus = "active"
	AffiliateStatusSuspended AffiliateStatus = "suspended"
	AffiliateStatusRejected  AffiliateStatus = "rejected"
	AffiliateStatusInactive  AffiliateStatus = "inactive"
)

type AffiliateClass string

const (
	// AffiliateClassStandard earns percentage or fixed commission per order.
	AffiliateClassStandard AffiliateClass = "standard"
	// AffiliateClassLicensed gets license benefits instead of per-order commission.
	AffiliateClassLicensed AffiliateClass = "licensed"
)

type PolicyKind string

const (
	PolicyKindPercent PolicyKind = "percent"
	PolicyKindFixed   PolicyKind = "fixed"
)

type Affiliate struct {
	AffiliateID string          `json:"affiliate_id"`
	Code        string          `json:"code"`
	Slug        string          `json:"slug,omitempty"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Class       AffiliateClass  `json:"class"`
	Status      AffiliateStatus `json:"status"`
	PolicyKind  PolicyKind      `json:"policy_kind"`
	// PolicyValue is a percentage for percent policies (20 means 20%)
	// and an absolute amount in the order currency for fixed policies.
	PolicyValue float64 `json:"policy_value"`
	// PreferredRail is only rewritten by defined transition rules: the first
	// not-ready -> ready onboarding completion, or a disconnect fallback.
	PreferredRail RailKind   `json:"preferred_rail"`
	AutoDispatch  bool       `json:"auto_dispatch"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// CanAttribute reports whether clicks against this affiliate may set attribution.
func (a Affiliate) CanAttribute() bool {
	return a.Status == AffiliateStatusActive
}

// EarnsCommission excludes licensed affiliates from the commission ledger.
func (a Affiliate) EarnsCommission() bool {
	return a.Class == AffiliateClassStandard && a.Status == AffiliateStatusActive
}

func ValidateAffiliateCode(code string) error {
	code = strings.TrimSpace(code)
	if len(code) < 3 || len(code) > 32 {
		return ErrInvalidInput
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrInvalidInput
		}
	}
	return nil
}
