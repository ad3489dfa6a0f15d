package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// HandleOrderPaymentEvent is the reconciliation listener. Payment webhooks
// redeliver and arrive out of order, so every path through here is an
// idempotent state-transition request keyed by the order id: captured funds
// create a commission if none exists, reversals cancel a not-yet-terminal
// one, and anything else is a no-op.
func (s *Service) HandleOrderPaymentEvent(ctx context.Context, envelope contracts.EventEnvelope) error {
	if err := validateEnvelope(envelope); err != nil {
		return err
	}
	if !domain.IsCanonicalInputEvent(envelope.EventType) {
		return domain.ErrUnsupportedEventType
	}
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, envelope.EventID, s.nowFn())
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}

	var payload contracts.OrderPaymentEventPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return domain.ErrInvalidEnvelope
	}
	if strings.TrimSpace(payload.OrderID) == "" {
		return domain.ErrInvalidEnvelope
	}

	var handleErr error
	switch envelope.EventType {
	case domain.EventOrderPaymentCaptured:
		handleErr = s.onPaymentCaptured(ctx, payload)
	case domain.EventOrderPaymentRefunded, domain.EventOrderPaymentChargeback:
		handleErr = s.onPaymentReversed(ctx, payload)
	}
	if handleErr != nil {
		return handleErr
	}

	if s.eventDedup != nil {
		_ = s.eventDedup.MarkProcessed(ctx, envelope.EventID, envelope.EventType, s.nowFn().Add(s.cfg.EventDedupTTL))
	}
	return nil
}

func (s *Service) onPaymentCaptured(ctx context.Context, payload contracts.OrderPaymentEventPayload) error {
	order := ports.OrderSnapshot{
		OrderID:     payload.OrderID,
		AffiliateID: strings.TrimSpace(payload.AffiliateID),
		Total:       payload.Total,
		Currency:    payload.Currency,
	}
	// Older producers emit bare order ids; read the order module directly.
	if order.AffiliateID == "" || order.Total <= 0 {
		if s.orders == nil {
			return domain.ErrInvalidEnvelope
		}
		snapshot, err := s.orders.GetOrder(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		order = snapshot
	}
	if order.AffiliateID == "" {
		// Unattributed order; nothing owed.
		return nil
	}
	_, _, err := s.CreateCommissionForOrder(ctx, order, payload.ClickID)
	return err
}

func (s *Service) onPaymentReversed(ctx context.Context, payload contracts.OrderPaymentEventPayload) error {
	row, err := s.commissions.GetByOrderID(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	switch row.Status {
	case domain.CommissionStatusCancelled:
		return nil
	case domain.CommissionStatusPaid:
		// Money already left the system; reversal needs the manual clawback
		// path, never an automatic cancel.
		slog.Default().WarnContext(ctx, "payment reversed for a paid commission; manual clawback required",
			"module", "application",
			"operation", "order_payment_reversed",
			"outcome", "partial",
			"commission_id", row.CommissionID,
			"order_id", payload.OrderID,
		)
		return nil
	}
	_, err = s.cancelCommission(ctx, row.CommissionID, "order payment reversed")
	return err
}

func (s *Service) enqueueEvent(ctx context.Context, eventType string, data any, affiliateID string, now time.Time) error {
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return domain.ErrUnsupportedEventType
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.ErrInvalidInput
	}
	env := contracts.EventEnvelope{
		EventID:          "evt_" + uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     affiliateID,
		SourceService:    s.cfg.ServiceName,
		TraceID:          uuid.NewString(),
		SchemaVersion:    "v1",
		Data:             raw,
	}
	// Click analytics is volume traffic with no delivery guarantee; it goes
	// straight to the analytics stream. Ledger events ride the outbox.
	if env.EventClass == domain.CanonicalEventClassAnalyticsOnly {
		if s.analytics == nil {
			return nil
		}
		return s.analytics.PublishAnalytics(ctx, env)
	}
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:   uuid.NewString(),
		EventClass: env.EventClass,
		Envelope:   env,
		CreatedAt:  now,
	})
}

func validateEnvelope(event contracts.EventEnvelope) error {
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.EventType) == "" || event.OccurredAt.IsZero() {
		return domain.ErrInvalidEnvelope
	}
	if len(event.Data) == 0 {
		return domain.ErrInvalidEnvelope
	}
	return nil
}
