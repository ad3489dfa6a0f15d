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

// CreateCommissionForOrder finalizes a commission when an order first reaches
// captured funds. The (affiliate, order) uniqueness invariant makes it safe
// under concurrent duplicate triggers: a second creation attempt observes the
// existing row (or a unique violation) and returns it unchanged.
func (s *Service) CreateCommissionForOrder(ctx context.Context, order ports.OrderSnapshot, clickID string) (domain.Commission, bool, error) {
	if strings.TrimSpace(order.OrderID) == "" || strings.TrimSpace(order.AffiliateID) == "" {
		return domain.Commission{}, false, domain.ErrInvalidInput
	}
	if existing, err := s.commissions.GetByOrderID(ctx, order.OrderID); err == nil {
		return existing, false, nil
	}

	aff, err := s.affiliates.GetByID(ctx, order.AffiliateID)
	if err != nil {
		return domain.Commission{}, false, err
	}
	if !aff.EarnsCommission() {
		return domain.Commission{}, false, nil
	}

	currency := strings.ToUpper(strings.TrimSpace(order.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	if order.Total <= 0 {
		return domain.Commission{}, false, domain.ErrInvalidInput
	}

	now := s.nowFn()
	row := domain.Commission{
		CommissionID: "com_" + uuid.NewString(),
		AffiliateID:  aff.AffiliateID,
		OrderID:      order.OrderID,
		OrderTotal:   order.Total,
		Currency:     currency,
		PolicyKind:   aff.PolicyKind,
		PolicyValue:  aff.PolicyValue,
		Amount:       domain.ComputeCommissionAmount(order.Total, currency, aff.PolicyKind, aff.PolicyValue),
		Status:       domain.CommissionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.commissions.Create(ctx, row); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race to a concurrent trigger for the same order.
			if existing, getErr := s.commissions.GetByOrderID(ctx, order.OrderID); getErr == nil {
				return existing, false, nil
			}
			slog.Default().ErrorContext(ctx, "duplicate commission conflict without retrievable row",
				"module", "application",
				"operation", "create_commission",
				"outcome", "failure",
				"order_id", order.OrderID,
				"affiliate_id", aff.AffiliateID,
			)
			return domain.Commission{}, false, domain.ErrInvariantViolation
		}
		return domain.Commission{}, false, err
	}

	if clickID = strings.TrimSpace(clickID); clickID != "" {
		_ = s.clicks.MarkConverted(ctx, clickID, now)
	}
	_ = s.enqueueCommissionEvent(ctx, domain.EventCommissionCreated, row, now)
	return row, true, nil
}

// ApproveCommission moves a pending commission to approved. Approving an
// already approved or paid commission is a no-op, not an error, so operator
// double-clicks and rule replays stay harmless. Approval is the trigger for
// an automatic dispatch attempt when the affiliate has auto-dispatch enabled.
func (s *Service) ApproveCommission(ctx context.Context, actor Actor, commissionID string) (domain.Commission, error) {
	if err := requireOperator(actor); err != nil {
		return domain.Commission{}, err
	}
	row, err := s.commissions.GetByID(ctx, commissionID)
	if err != nil {
		return domain.Commission{}, err
	}
	switch row.Status {
	case domain.CommissionStatusApproved, domain.CommissionStatusPaid:
		return row, nil
	case domain.CommissionStatusCancelled:
		return domain.Commission{}, domain.ErrInvalidTransition
	}
	if err := domain.ValidateTransition(row.Status, domain.CommissionStatusApproved); err != nil {
		return domain.Commission{}, err
	}

	now := s.nowFn()
	updated := row
	updated.Status = domain.CommissionStatusApproved
	updated.ApprovedAt = &now
	updated.UpdatedAt = now
	if err := s.commissions.Transition(ctx, updated, domain.CommissionStatusPending); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Someone else transitioned first; re-read and report that state.
			return s.commissions.GetByID(ctx, commissionID)
		}
		return domain.Commission{}, err
	}
	_ = s.enqueueCommissionEvent(ctx, domain.EventCommissionApproved, updated, now)

	if s.shouldAutoDispatch(ctx, updated) {
		if _, dispatchErr := s.DispatchPayout(ctx, actor, updated.CommissionID); dispatchErr != nil {
			slog.Default().WarnContext(ctx, "auto dispatch after approval failed",
				"module", "application",
				"operation", "approve_commission",
				"outcome", "partial",
				"commission_id", updated.CommissionID,
				"error", dispatchErr.Error(),
			)
		}
		return s.commissions.GetByID(ctx, updated.CommissionID)
	}
	return updated, nil
}

// CancelCommission cancels a pending or approved commission. A paid
// commission is never auto-cancelled; clawback of settled money is a manual
// operation outside this engine.
func (s *Service) CancelCommission(ctx context.Context, actor Actor, commissionID, reason string) (domain.Commission, error) {
	if err := requireOperator(actor); err != nil {
		return domain.Commission{}, err
	}
	return s.cancelCommission(ctx, commissionID, reason)
}

func (s *Service) cancelCommission(ctx context.Context, commissionID, reason string) (domain.Commission, error) {
	row, err := s.commissions.GetByID(ctx, commissionID)
	if err != nil {
		return domain.Commission{}, err
	}
	if row.Status == domain.CommissionStatusCancelled {
		return row, nil
	}
	if err := domain.ValidateTransition(row.Status, domain.CommissionStatusCancelled); err != nil {
		return domain.Commission{}, err
	}

	now := s.nowFn()
	updated := row
	updated.Status = domain.CommissionStatusCancelled
	updated.CancelledAt = &now
	updated.UpdatedAt = now
	if reason = strings.TrimSpace(reason); reason != "" {
		updated.Notes = appendNote(updated.Notes, reason)
	}
	if err := s.commissions.Transition(ctx, updated, row.Status); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.commissions.GetByID(ctx, commissionID)
		}
		return domain.Commission{}, err
	}
	_ = s.enqueueCommissionEvent(ctx, domain.EventCommissionCancelled, updated, now)
	return updated, nil
}

// MarkPaidManually records an out-of-band settlement (bank/PIX transfer) for
// an approved commission. The proof reference is mandatory: paid without
// proof is an invariant violation, never coerced.
func (s *Service) MarkPaidManually(ctx context.Context, actor Actor, commissionID, proofRef, notes string) (domain.Commission, error) {
	if err := requireOperator(actor); err != nil {
		return domain.Commission{}, err
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.Commission{}, domain.ErrIdempotencyRequired
	}
	requestHash := hashJSON(map[string]any{"op": "mark_paid", "actor": actor.SubjectID, "commission_id": commissionID, "proof_ref": strings.TrimSpace(proofRef)})
	if raw, ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Commission{}, err
	} else if ok {
		var cached domain.Commission
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil && !errors.Is(err, domain.ErrConflict) {
		return domain.Commission{}, err
	}
	if err := domain.ValidatePaidProof(proofRef); err != nil {
		slog.Default().ErrorContext(ctx, "manual paid mark rejected without proof",
			"module", "application",
			"operation", "mark_paid_manually",
			"outcome", "failure",
			"commission_id", commissionID,
			"actor_id", actor.SubjectID,
		)
		return domain.Commission{}, err
	}
	row, err := s.commissions.GetByID(ctx, commissionID)
	if err != nil {
		return domain.Commission{}, err
	}
	if row.Status == domain.CommissionStatusPaid {
		return row, nil
	}
	if err := domain.ValidateTransition(row.Status, domain.CommissionStatusPaid); err != nil {
		return domain.Commission{}, err
	}

	now := s.nowFn()
	updated := row
	updated.Status = domain.CommissionStatusPaid
	updated.Method = domain.RailManual
	updated.ProofRef = strings.TrimSpace(proofRef)
	updated.RequiresManualReview = false
	updated.FailureMessage = ""
	updated.PaidAt = &now
	updated.UpdatedAt = now
	if notes = strings.TrimSpace(notes); notes != "" {
		updated.Notes = appendNote(updated.Notes, notes)
	}
	if err := s.commissions.Transition(ctx, updated, domain.CommissionStatusApproved); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.commissions.GetByID(ctx, commissionID)
		}
		return domain.Commission{}, err
	}

	_ = s.payoutAttempts.Append(ctx, domain.PayoutAttempt{
		AttemptID:    "att_" + uuid.NewString(),
		CommissionID: updated.CommissionID,
		Rail:         domain.RailManual,
		Outcome:      domain.PayoutOutcomeSuccess,
		TransferID:   updated.ProofRef,
		CreatedAt:    now,
	})
	_ = s.enqueueCommissionEvent(ctx, domain.EventCommissionPaid, updated, now)
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, updated)
	return updated, nil
}

func (s *Service) GetCommission(ctx context.Context, actor Actor, commissionID string) (domain.Commission, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Commission{}, domain.ErrUnauthorized
	}
	row, err := s.commissions.GetByID(ctx, commissionID)
	if err != nil {
		return domain.Commission{}, err
	}
	if !isOperator(actor) && row.AffiliateID != actor.SubjectID {
		return domain.Commission{}, domain.ErrForbidden
	}
	return row, nil
}

func (s *Service) ListCommissions(ctx context.Context, actor Actor, query ports.CommissionQuery) ([]domain.Commission, int, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return nil, 0, domain.ErrUnauthorized
	}
	if !isOperator(actor) {
		query.AffiliateID = actor.SubjectID
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	return s.commissions.List(ctx, query)
}

func (s *Service) shouldAutoDispatch(ctx context.Context, row domain.Commission) bool {
	aff, err := s.affiliates.GetByID(ctx, row.AffiliateID)
	if err != nil {
		return false
	}
	return aff.AutoDispatch && aff.PreferredRail.Automated()
}

func (s *Service) enqueueCommissionEvent(ctx context.Context, eventType string, row domain.Commission, now time.Time) error {
	return s.enqueueEvent(ctx, eventType, contracts.CommissionEventPayload{
		CommissionID: row.CommissionID,
		AffiliateID:  row.AffiliateID,
		OrderID:      row.OrderID,
		Amount:       row.Amount,
		Currency:     row.Currency,
		Status:       string(row.Status),
		ProofRef:     row.ProofRef,
		OccurredAt:   now.UTC().Format(time.RFC3339),
	}, row.AffiliateID, now)
}

func requireOperator(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	if !isOperator(actor) {
		return domain.ErrForbidden
	}
	return nil
}

func isOperator(actor Actor) bool {
	role := strings.ToLower(strings.TrimSpace(actor.Role))
	return role == "operator" || role == "admin"
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "; " + note
}
