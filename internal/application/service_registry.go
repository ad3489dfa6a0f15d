package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
)

// StartOnboarding begins (or resumes) rail onboarding for the acting
// affiliate and returns the provider redirect target. An existing external
// account id is reused so an abandoned onboarding can be picked back up.
func (s *Service) StartOnboarding(ctx context.Context, actor Actor, rail domain.RailKind) (OnboardResult, error) {
	aff, err := s.requireAffiliateActor(ctx, actor)
	if err != nil {
		return OnboardResult{}, err
	}
	if !rail.Automated() {
		return OnboardResult{}, domain.ErrInvalidInput
	}
	adapter, ok := s.rails.Rail(rail)
	if !ok {
		return OnboardResult{}, domain.ErrRailNotReady
	}

	existing, getErr := s.payoutAccounts.Get(ctx, aff.AffiliateID, rail)
	existingID := ""
	if getErr == nil {
		existingID = existing.ExternalAccountID
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RailCallTimeout)
	defer cancel()
	session, err := adapter.StartOnboarding(callCtx, aff, existingID)
	if err != nil {
		return OnboardResult{}, err
	}

	now := s.nowFn()
	account := existing
	if getErr != nil {
		account = domain.PayoutAccount{
			AccountID:   "pacct_" + uuid.NewString(),
			AffiliateID: aff.AffiliateID,
			Rail:        rail,
			ConnectedAt: now,
		}
	}
	account.ExternalAccountID = session.ExternalAccountID
	account.UpdatedAt = now
	if err := s.payoutAccounts.Upsert(ctx, account); err != nil {
		return OnboardResult{}, err
	}
	return OnboardResult{Account: account, RedirectURL: session.RedirectURL}, nil
}

// RefreshRailStatus polls the rail's status API and persists the normalized
// readiness flags. The first time this rail crosses from not-ready to ready
// it becomes the affiliate's preferred rail with auto-dispatch enabled;
// subsequent polls never touch the preference again.
func (s *Service) RefreshRailStatus(ctx context.Context, actor Actor, rail domain.RailKind) (RefreshResult, error) {
	aff, err := s.requireAffiliateActor(ctx, actor)
	if err != nil {
		return RefreshResult{}, err
	}
	if !rail.Automated() {
		return RefreshResult{}, domain.ErrInvalidInput
	}
	adapter, ok := s.rails.Rail(rail)
	if !ok {
		return RefreshResult{}, domain.ErrRailNotReady
	}
	account, err := s.payoutAccounts.Get(ctx, aff.AffiliateID, rail)
	if err != nil || account.ExternalAccountID == "" {
		return RefreshResult{}, domain.ErrNeedsOnboarding
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RailCallTimeout)
	defer cancel()
	status, err := adapter.CheckReady(callCtx, account.ExternalAccountID)
	if err != nil {
		return RefreshResult{}, err
	}

	now := s.nowFn()
	account.PayoutsEnabled = status.Connected && status.PayoutsEnabled
	account.LastCheckedAt = now
	account.UpdatedAt = now

	firstReady := account.PayoutsEnabled && account.FirstReadyAt == nil
	if firstReady {
		account.FirstReadyAt = &now
	}
	if err := s.payoutAccounts.Upsert(ctx, account); err != nil {
		return RefreshResult{}, err
	}
	if s.railStatus != nil {
		_ = s.railStatus.Set(ctx, aff.AffiliateID, rail, status, s.cfg.RailStatusCacheTTL)
	}

	// The first rail to become payable wins the preference. A rail reaching
	// readiness later never displaces an automated preference already held.
	if firstReady && !aff.PreferredRail.Automated() {
		aff.PreferredRail = rail
		aff.AutoDispatch = true
		aff.UpdatedAt = now
		if err := s.affiliates.Update(ctx, aff); err != nil {
			return RefreshResult{}, err
		}
		slog.Default().InfoContext(ctx, "preferred payout rail assigned on first readiness",
			"module", "application",
			"operation", "refresh_rail_status",
			"outcome", "success",
			"affiliate_id", aff.AffiliateID,
			"rail", string(rail),
		)
	}
	return RefreshResult{Account: account, Status: status, PreferredRail: aff.PreferredRail}, nil
}

// DisconnectRail clears the stored identifiers for a rail. When the
// disconnected rail was the preferred automated one, the affiliate falls back
// to manual settlement; a later explicit re-onboarding starts with a clean
// first-ready slate.
func (s *Service) DisconnectRail(ctx context.Context, actor Actor, rail domain.RailKind) (domain.Affiliate, error) {
	aff, err := s.requireAffiliateActor(ctx, actor)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if !rail.Automated() {
		return domain.Affiliate{}, domain.ErrInvalidInput
	}
	account, err := s.payoutAccounts.Get(ctx, aff.AffiliateID, rail)
	if err != nil {
		return domain.Affiliate{}, err
	}

	now := s.nowFn()
	account.ExternalAccountID = ""
	account.PayoutsEnabled = false
	account.FirstReadyAt = nil
	account.UpdatedAt = now
	if err := s.payoutAccounts.Upsert(ctx, account); err != nil {
		return domain.Affiliate{}, err
	}

	if aff.PreferredRail == rail {
		aff.PreferredRail = domain.RailManual
		aff.AutoDispatch = false
		aff.UpdatedAt = now
		if err := s.affiliates.Update(ctx, aff); err != nil {
			return domain.Affiliate{}, err
		}
	}
	return aff, nil
}

// PaymentMethods reports which payout rails are currently viable for the
// affiliate behind a referral code. Checkout uses it to decide which buyer
// payment options to surface. The manual rail is always listed: an operator
// can settle out-of-band regardless of onboarding state.
func (s *Service) PaymentMethods(ctx context.Context, code string) (PaymentMethods, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return PaymentMethods{}, domain.ErrInvalidInput
	}
	aff, err := s.affiliates.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return PaymentMethods{}, domain.ErrUnknownCode
		}
		return PaymentMethods{}, err
	}

	accounts, err := s.payoutAccounts.ListByAffiliateID(ctx, aff.AffiliateID)
	if err != nil {
		return PaymentMethods{}, err
	}
	rails := make([]domain.PayoutAccount, 0, len(accounts)+1)
	seenManual := false
	for _, acct := range accounts {
		if acct.Rail == domain.RailManual {
			seenManual = true
		}
		rails = append(rails, acct)
	}
	if !seenManual {
		rails = append(rails, domain.PayoutAccount{
			AffiliateID:    aff.AffiliateID,
			Rail:           domain.RailManual,
			PayoutsEnabled: true,
		})
	}
	return PaymentMethods{Affiliate: aff, Rails: rails}, nil
}
