package domain

import (
	"errors"
	"testing"
)

func TestComputeCommissionAmount(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		total    float64
		currency string
		kind     PolicyKind
		value    float64
		want     float64
	}{
		{"percent simple", 200, "USD", PolicyKindPercent, 10, 20},
		{"percent rounds half up", 33.33, "USD", PolicyKindPercent, 10, 3.33},
		{"percent tie rounds up", 12.50, "USD", PolicyKindPercent, 10, 1.25},
		{"fixed simple", 200, "USD", PolicyKindFixed, 15, 15},
		{"fixed clamped to total", 10, "USD", PolicyKindFixed, 50, 10},
		{"negative fixed clamped to zero", 100, "USD", PolicyKindFixed, -5, 0},
		{"percent over hundred clamped", 100, "USD", PolicyKindPercent, 150, 100},
		{"zero decimal currency", 1999, "JPY", PolicyKindPercent, 7.5, 150},
		{"three decimal currency", 100, "KWD", PolicyKindPercent, 12.3456, 12.346},
		{"unknown policy earns nothing", 100, "USD", PolicyKind("loyalty"), 10, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ComputeCommissionAmount(tc.total, tc.currency, tc.kind, tc.value)
			if got != tc.want {
				t.Fatalf("ComputeCommissionAmount(%v, %s, %s, %v) = %v, want %v",
					tc.total, tc.currency, tc.kind, tc.value, got, tc.want)
			}
		})
	}
}

func TestValidateTransition(t *testing.T) {
	t.Parallel()
	allowed := []struct{ from, to CommissionStatus }{
		{CommissionStatusPending, CommissionStatusApproved},
		{CommissionStatusPending, CommissionStatusCancelled},
		{CommissionStatusApproved, CommissionStatusPaid},
		{CommissionStatusApproved, CommissionStatusCancelled},
	}
	for _, tc := range allowed {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Fatalf("expected %s -> %s to be allowed: %v", tc.from, tc.to, err)
		}
	}

	forbidden := []struct{ from, to CommissionStatus }{
		{CommissionStatusPending, CommissionStatusPaid},
		{CommissionStatusPaid, CommissionStatusCancelled},
		{CommissionStatusPaid, CommissionStatusApproved},
		{CommissionStatusCancelled, CommissionStatusApproved},
		{CommissionStatusCancelled, CommissionStatusPaid},
		{CommissionStatusApproved, CommissionStatusPending},
	}
	for _, tc := range forbidden {
		if err := ValidateTransition(tc.from, tc.to); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected %s -> %s to be rejected, got %v", tc.from, tc.to, err)
		}
	}
}

func TestValidatePaidProof(t *testing.T) {
	t.Parallel()
	if err := ValidatePaidProof("tr_123"); err != nil {
		t.Fatalf("proof should be accepted: %v", err)
	}
	for _, proof := range []string{"", "   ", "\t"} {
		if err := ValidatePaidProof(proof); !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("blank proof %q must violate the invariant, got %v", proof, err)
		}
	}
}

func TestValidateAffiliateCode(t *testing.T) {
	t.Parallel()
	for _, code := range []string{"abc", "SUMMER20", "my-code_2026", "x1y2z3"} {
		if err := ValidateAffiliateCode(code); err != nil {
			t.Fatalf("code %q should be valid: %v", code, err)
		}
	}
	for _, code := range []string{"", "ab", "has space", "emoji🙂code", "a!b@c"} {
		if err := ValidateAffiliateCode(code); err == nil {
			t.Fatalf("code %q should be rejected", code)
		}
	}
}
