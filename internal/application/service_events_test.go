package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

func TestHandleOrderPaymentCapturedCreatesPendingCommission(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "EVNT0001", domain.AffiliateStatusActive)
	ctx := context.Background()

	if err := f.svc.HandleOrderPaymentEvent(ctx, capturedEnvelope("evt-1", "ord-1", "aff-1", 150)); err != nil {
		t.Fatalf("handle captured: %v", err)
	}
	row, err := f.commissions.GetByOrderID(ctx, "ord-1")
	if err != nil {
		t.Fatalf("commission not created: %v", err)
	}
	if row.Status != domain.CommissionStatusPending || row.Amount != 15 {
		t.Fatalf("unexpected commission: %+v", row)
	}

	records := f.outbox.records()
	found := false
	for _, rec := range records {
		if rec.Envelope.EventType == domain.EventCommissionCreated {
			found = true
			if rec.Envelope.PartitionKey != "aff-1" || rec.Envelope.PartitionKeyPath != "data.affiliate_id" {
				t.Fatalf("partition key invariant not set: %+v", rec.Envelope)
			}
		}
	}
	if !found {
		t.Fatalf("commission.created not enqueued")
	}
}

func TestHandleOrderPaymentRedeliveryIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "EVNT0002", domain.AffiliateStatusActive)
	ctx := context.Background()
	envelope := capturedEnvelope("evt-dup", "ord-1", "aff-1", 150)

	if err := f.svc.HandleOrderPaymentEvent(ctx, envelope); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.svc.HandleOrderPaymentEvent(ctx, envelope); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	rows, total, _ := f.commissions.List(ctx, ports.CommissionQuery{})
	if total != 1 {
		t.Fatalf("expected one commission after redelivery, got %d (%+v)", total, rows)
	}
}

func TestHandleOrderPaymentUnattributedOrderIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()
	f.orders["ord-bare"] = ports.OrderSnapshot{OrderID: "ord-bare", Total: 90, Currency: "USD"}

	if err := f.svc.HandleOrderPaymentEvent(ctx, capturedEnvelope("evt-bare", "ord-bare", "", 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := f.commissions.GetByOrderID(ctx, "ord-bare"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unattributed order must not create a commission")
	}
}

func TestHandleOrderPaymentFallsBackToOrderReader(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "EVNT0003", domain.AffiliateStatusActive)
	ctx := context.Background()
	f.orders["ord-lean"] = ports.OrderSnapshot{OrderID: "ord-lean", AffiliateID: "aff-1", Total: 60, Currency: "USD"}

	// Older producers emit only the order id; totals come from the order module.
	if err := f.svc.HandleOrderPaymentEvent(ctx, capturedEnvelope("evt-lean", "ord-lean", "", 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	row, err := f.commissions.GetByOrderID(ctx, "ord-lean")
	if err != nil {
		t.Fatalf("expected commission from order snapshot: %v", err)
	}
	if row.Amount != 6 {
		t.Fatalf("expected 10%% of 60, got %f", row.Amount)
	}
}

func TestRefundBeforeApprovalCancels(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "EVNT0004", domain.AffiliateStatusActive)
	ctx := context.Background()

	if err := f.svc.HandleOrderPaymentEvent(ctx, capturedEnvelope("evt-c", "ord-1", "aff-1", 100)); err != nil {
		t.Fatalf("captured: %v", err)
	}
	if err := f.svc.HandleOrderPaymentEvent(ctx, paymentEnvelope("evt-r", domain.EventOrderPaymentRefunded, "ord-1", "aff-1", 100)); err != nil {
		t.Fatalf("refunded: %v", err)
	}
	row, _ := f.commissions.GetByOrderID(ctx, "ord-1")
	if row.Status != domain.CommissionStatusCancelled {
		t.Fatalf("expected cancelled, got %s", row.Status)
	}
}

func TestRefundAfterPaidLeavesPaid(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.seedAffiliate("aff-1", "EVNT0005", domain.AffiliateStatusActive)
	row := f.seedApprovedCommission("com-1", "aff-1", "ord-1", 10)
	ctx := context.Background()
	operator := Actor{SubjectID: "op-1", Role: "operator", IdempotencyKey: "idem-clawback"}
	if _, err := f.svc.MarkPaidManually(ctx, operator, row.CommissionID, "wire-1", ""); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	if err := f.svc.HandleOrderPaymentEvent(ctx, paymentEnvelope("evt-cb", domain.EventOrderPaymentChargeback, "ord-1", "aff-1", 100)); err != nil {
		t.Fatalf("chargeback: %v", err)
	}
	stored, _ := f.commissions.GetByID(ctx, row.CommissionID)
	if stored.Status != domain.CommissionStatusPaid {
		t.Fatalf("paid money is never auto-clawed back, got %s", stored.Status)
	}
}

func TestRefundWithoutCommissionIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture()
	if err := f.svc.HandleOrderPaymentEvent(context.Background(), paymentEnvelope("evt-r2", domain.EventOrderPaymentRefunded, "ord-ghost", "", 0)); err != nil {
		t.Fatalf("refund for unknown order must be a no-op, got %v", err)
	}
}

func TestHandleOrderPaymentRejectsBadEnvelopes(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	missingID := capturedEnvelope("", "ord-1", "aff-1", 10)
	if err := f.svc.HandleOrderPaymentEvent(ctx, missingID); !errors.Is(err, domain.ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}

	wrongType := capturedEnvelope("evt-x", "ord-1", "aff-1", 10)
	wrongType.EventType = "order.created"
	if err := f.svc.HandleOrderPaymentEvent(ctx, wrongType); !errors.Is(err, domain.ErrUnsupportedEventType) {
		t.Fatalf("expected ErrUnsupportedEventType, got %v", err)
	}

	noOrder := contracts.EventEnvelope{
		EventID:    "evt-y",
		EventType:  domain.EventOrderPaymentCaptured,
		OccurredAt: time.Now().UTC(),
		Data:       []byte(`{"payment_state":"captured"}`),
	}
	if err := f.svc.HandleOrderPaymentEvent(ctx, noOrder); !errors.Is(err, domain.ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope for missing order id, got %v", err)
	}
}
