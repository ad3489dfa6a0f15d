package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// DispatchPayout attempts settlement of an approved commission on the
// affiliate's preferred rail. It is re-entrant: the status re-check before
// the external call and the commission-derived idempotency key passed to the
// rail are two independent guards, so calling it any number of times,
// concurrently included, moves funds at most once.
func (s *Service) DispatchPayout(ctx context.Context, actor Actor, commissionID string) (DispatchResult, error) {
	if err := requireOperator(actor); err != nil {
		return DispatchResult{}, err
	}
	// An Idempotency-Key on the request short-circuits to the cached answer.
	// The persisted status transition stays the real double-spend guard.
	requestHash := hashJSON(map[string]any{"op": "dispatch_payout", "actor": actor.SubjectID, "commission_id": commissionID})
	if raw, ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return DispatchResult{}, err
	} else if ok {
		var cached DispatchResult
		if json.Unmarshal(raw, &cached) == nil {
			return cached, nil
		}
	}

	row, err := s.commissions.GetByID(ctx, commissionID)
	if err != nil {
		return DispatchResult{}, err
	}
	switch row.Status {
	case domain.CommissionStatusPaid:
		return DispatchResult{}, domain.ErrAlreadyPaid
	case domain.CommissionStatusApproved:
	default:
		return DispatchResult{}, domain.ErrNotApproved
	}
	// Belt and suspenders: a successful attempt on record means money moved,
	// whatever the status row currently says.
	if ok, err := s.payoutAttempts.HasSuccess(ctx, row.CommissionID); err != nil {
		return DispatchResult{}, err
	} else if ok {
		slog.Default().ErrorContext(ctx, "dispatch requested for commission with successful attempt on record",
			"module", "application",
			"operation", "dispatch_payout",
			"outcome", "failure",
			"commission_id", row.CommissionID,
			"status", string(row.Status),
		)
		return DispatchResult{}, domain.ErrAlreadyPaid
	}

	aff, err := s.affiliates.GetByID(ctx, row.AffiliateID)
	if err != nil {
		return DispatchResult{}, err
	}

	if !aff.PreferredRail.Automated() {
		return s.flagManualReview(ctx, row, domain.RailManual, "no automated rail configured; settle manually")
	}

	rail, ok := s.rails.Rail(aff.PreferredRail)
	if !ok {
		return s.flagManualReview(ctx, row, aff.PreferredRail, "preferred rail has no adapter configured")
	}
	account, err := s.payoutAccounts.Get(ctx, aff.AffiliateID, aff.PreferredRail)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		// A store failure is not an onboarding state; surface it for retry.
		return DispatchResult{}, err
	}
	if account.ExternalAccountID == "" || !account.PayoutsEnabled {
		s.recordAttempt(ctx, row, aff.PreferredRail, domain.PayoutOutcomeNeedsOnboarding, "", "rail not onboarded or payouts disabled")
		return DispatchResult{
			Commission: row,
			Outcome:    domain.PayoutOutcomeNeedsOnboarding,
			Rail:       aff.PreferredRail,
			Message:    "rail not onboarded or payouts disabled",
		}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RailCallTimeout)
	defer cancel()
	result, transferErr := rail.Transfer(callCtx, ports.TransferRequest{
		CommissionID:         row.CommissionID,
		Amount:               row.Amount,
		Currency:             row.Currency,
		DestinationAccountID: account.ExternalAccountID,
		IdempotencyKey:       row.CommissionID,
	})
	if transferErr != nil {
		return s.handleTransferFailure(ctx, row, rail.Kind(), transferErr)
	}

	now := s.nowFn()
	paid := row
	paid.Status = domain.CommissionStatusPaid
	paid.Method = rail.Kind()
	paid.ProofRef = result.TransferID
	paid.RequiresManualReview = false
	paid.FailureMessage = ""
	paid.PaidAt = &now
	paid.UpdatedAt = now
	if err := domain.ValidatePaidProof(paid.ProofRef); err != nil {
		// A rail success without a transfer id cannot be trusted as settled.
		slog.Default().ErrorContext(ctx, "rail reported success without transfer id",
			"module", "application",
			"operation", "dispatch_payout",
			"outcome", "failure",
			"commission_id", row.CommissionID,
			"rail", string(rail.Kind()),
		)
		return DispatchResult{}, err
	}
	if err := s.commissions.Transition(ctx, paid, domain.CommissionStatusApproved); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent dispatch completed first. The rail deduplicated on
			// the shared idempotency key, so no second transfer happened.
			current, getErr := s.commissions.GetByID(ctx, row.CommissionID)
			if getErr == nil && current.Status == domain.CommissionStatusPaid {
				return DispatchResult{
					Commission: current,
					Success:    true,
					Outcome:    domain.PayoutOutcomeSuccess,
					Rail:       current.Method,
					TransferID: current.ProofRef,
				}, nil
			}
		}
		return DispatchResult{}, err
	}

	s.recordAttempt(ctx, paid, rail.Kind(), domain.PayoutOutcomeSuccess, result.TransferID, "")
	_ = s.enqueueCommissionEvent(ctx, domain.EventCommissionPaid, paid, now)
	out := DispatchResult{
		Commission: paid,
		Success:    true,
		Outcome:    domain.PayoutOutcomeSuccess,
		Rail:       rail.Kind(),
		TransferID: result.TransferID,
	}
	if actor.IdempotencyKey != "" {
		if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err == nil || errors.Is(err, domain.ErrConflict) {
			_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, out)
		}
	}
	return out, nil
}

// handleTransferFailure classifies the rail rejection. A timeout is transient
// by definition: the transfer may have landed even though the response was
// lost, and only the rail-side idempotency key makes the next retry safe.
func (s *Service) handleTransferFailure(ctx context.Context, row domain.Commission, rail domain.RailKind, transferErr error) (DispatchResult, error) {
	var railErr *ports.RailError
	permanent := errors.As(transferErr, &railErr) && railErr.Permanent

	if !permanent {
		s.recordAttempt(ctx, row, rail, domain.PayoutOutcomeTransientFailure, "", transferErr.Error())
		return DispatchResult{
			Commission: row,
			Outcome:    domain.PayoutOutcomeTransientFailure,
			Rail:       rail,
			Message:    transferErr.Error(),
		}, nil
	}

	now := s.nowFn()
	flagged := row
	flagged.RequiresManualReview = true
	flagged.FailureMessage = railErr.Error()
	flagged.UpdatedAt = now
	if err := s.commissions.Update(ctx, flagged); err != nil {
		return DispatchResult{}, err
	}
	s.recordAttempt(ctx, flagged, rail, domain.PayoutOutcomePermanentFailure, "", railErr.Error())
	_ = s.enqueuePayoutFailed(ctx, flagged, rail, domain.PayoutOutcomePermanentFailure, railErr.Error(), now)
	slog.Default().WarnContext(ctx, "payout permanently rejected by rail; flagged for manual review",
		"module", "application",
		"operation", "dispatch_payout",
		"outcome", "failure",
		"commission_id", row.CommissionID,
		"rail", string(rail),
		"error", railErr.Error(),
	)
	return DispatchResult{
		Commission: flagged,
		Outcome:    domain.PayoutOutcomePermanentFailure,
		Rail:       rail,
		Message:    railErr.Error(),
	}, nil
}

// flagManualReview leaves the commission approved but marks it for out-of-band
// settlement. Money stays owed; the engine never auto-cancels on payout
// trouble.
func (s *Service) flagManualReview(ctx context.Context, row domain.Commission, rail domain.RailKind, message string) (DispatchResult, error) {
	now := s.nowFn()
	flagged := row
	flagged.RequiresManualReview = true
	flagged.UpdatedAt = now
	if err := s.commissions.Update(ctx, flagged); err != nil {
		return DispatchResult{}, err
	}
	s.recordAttempt(ctx, flagged, rail, domain.PayoutOutcomeRailNotReady, "", message)
	return DispatchResult{
		Commission: flagged,
		Outcome:    domain.PayoutOutcomeRailNotReady,
		Rail:       rail,
		Message:    message,
	}, nil
}

func (s *Service) recordAttempt(ctx context.Context, row domain.Commission, rail domain.RailKind, outcome domain.PayoutOutcome, transferID, message string) {
	if err := s.payoutAttempts.Append(ctx, domain.PayoutAttempt{
		AttemptID:    "att_" + uuid.NewString(),
		CommissionID: row.CommissionID,
		Rail:         rail,
		Outcome:      outcome,
		TransferID:   transferID,
		Message:      message,
		CreatedAt:    s.nowFn(),
	}); err != nil {
		slog.Default().WarnContext(ctx, "failed to persist payout attempt",
			"module", "application",
			"operation", "record_attempt",
			"outcome", "failure",
			"commission_id", row.CommissionID,
			"error", err.Error(),
		)
	}
}

func (s *Service) ListPayoutAttempts(ctx context.Context, actor Actor, commissionID string) ([]domain.PayoutAttempt, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	return s.payoutAttempts.ListByCommissionID(ctx, commissionID)
}

func (s *Service) enqueuePayoutFailed(ctx context.Context, row domain.Commission, rail domain.RailKind, outcome domain.PayoutOutcome, message string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventPayoutAttemptFailed, contracts.PayoutAttemptFailedPayload{
		CommissionID: row.CommissionID,
		AffiliateID:  row.AffiliateID,
		Rail:         string(rail),
		Outcome:      string(outcome),
		Amount:       row.Amount,
		Currency:     row.Currency,
		Message:      message,
		FailedAt:     now.UTC().Format(time.RFC3339),
	}, row.AffiliateID, now)
}
