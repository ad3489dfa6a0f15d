package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

// Inbound events, delivered by the order-payment layer. Delivery may be
// duplicated and out of order; every handler keyed on these must be idempotent.
const (
	EventOrderPaymentCaptured   = "order.payment.captured"
	EventOrderPaymentRefunded   = "order.payment.refunded"
	EventOrderPaymentChargeback = "order.payment.chargeback"
)

// Emitted events. Commission lifecycle events double as the decoupled
// notification feed for the affiliate-facing notifier.
const (
	EventClickTracked        = "attribution.click.tracked"
	EventCommissionCreated   = "commission.created"
	EventCommissionApproved  = "commission.approved"
	EventCommissionPaid      = "commission.paid"
	EventCommissionCancelled = "commission.cancelled"
	EventPayoutAttemptFailed = "payout.attempt.failed"
)

func IsCanonicalInputEvent(eventType string) bool {
	switch eventType {
	case EventOrderPaymentCaptured, EventOrderPaymentRefunded, EventOrderPaymentChargeback:
		return true
	default:
		return false
	}
}

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventClickTracked, EventCommissionCreated, EventCommissionApproved,
		EventCommissionPaid, EventCommissionCancelled, EventPayoutAttemptFailed:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventClickTracked:
		return CanonicalEventClassAnalyticsOnly
	case EventCommissionCreated, EventCommissionApproved, EventCommissionPaid,
		EventCommissionCancelled, EventPayoutAttemptFailed:
		return CanonicalEventClassDomain
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	if IsCanonicalEmittedEvent(eventType) {
		return "data.affiliate_id"
	}
	return ""
}
