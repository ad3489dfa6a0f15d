package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

// OrderPaymentEventPayload is the inbound shape from the order-payment layer.
// Total and Currency may be absent on redeliveries from older producers; the
// listener then reads the order module directly.
type OrderPaymentEventPayload struct {
	OrderID      string  `json:"order_id"`
	PaymentState string  `json:"payment_state"`
	Total        float64 `json:"total,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	AffiliateID  string  `json:"affiliate_id,omitempty"`
	ClickID      string  `json:"click_id,omitempty"`
}

type ClickTrackedPayload struct {
	AffiliateID string `json:"affiliate_id"`
	ClickID     string `json:"click_id"`
	TargetRef   string `json:"target_ref,omitempty"`
	Device      string `json:"device"`
	TrackedAt   string `json:"tracked_at"`
}

type CommissionEventPayload struct {
	CommissionID string  `json:"commission_id"`
	AffiliateID  string  `json:"affiliate_id"`
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	ProofRef     string  `json:"proof_ref,omitempty"`
	OccurredAt   string  `json:"occurred_at"`
}

type PayoutAttemptFailedPayload struct {
	CommissionID string  `json:"commission_id"`
	AffiliateID  string  `json:"affiliate_id"`
	Rail         string  `json:"rail"`
	Outcome      string  `json:"outcome"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Message      string  `json:"message,omitempty"`
	FailedAt     string  `json:"failed_at"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic"`
	DLQTopic      string        `json:"dlq_topic"`
	TraceID       string        `json:"trace_id"`
}
