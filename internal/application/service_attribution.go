package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// TrackClick validates the referral code, appends the click to the ledger and
// pins the visitor to the affiliate via the signed attribution cookie.
// Re-visiting with a new code overwrites the cookie: last-touch attribution
// is the explicit policy, the most recent referrer before purchase wins.
func (s *Service) TrackClick(ctx context.Context, in TrackClickInput, jar ports.CookieJar) (TrackClickResult, error) {
	in.Code = strings.TrimSpace(in.Code)
	if err := domain.ValidateAffiliateCode(in.Code); err != nil {
		return TrackClickResult{}, domain.ErrUnknownCode
	}
	aff, err := s.affiliates.GetByCode(ctx, in.Code)
	if err != nil {
		return TrackClickResult{}, domain.ErrUnknownCode
	}
	if !aff.CanAttribute() {
		return TrackClickResult{}, domain.ErrAffiliateNotActive
	}

	now := s.nowFn()
	click := domain.Click{
		ClickID:     "click_" + uuid.NewString(),
		AffiliateID: aff.AffiliateID,
		TargetRef:   strings.TrimSpace(in.TargetRef),
		ClientIP:    strings.TrimSpace(in.ClientIP),
		UserAgent:   strings.TrimSpace(in.UserAgent),
		Device:      domain.DeriveDeviceClass(in.UserAgent),
		CreatedAt:   now,
	}
	if err := s.clicks.Append(ctx, click); err != nil {
		return TrackClickResult{}, err
	}

	expires := now.Add(time.Duration(s.cfg.CookieWindowDays) * 24 * time.Hour)
	cookieValue, err := s.cookieCodec.Encode(ports.AttributionClaim{
		Code:      aff.Code,
		ClickID:   click.ClickID,
		ExpiresAt: expires,
	})
	if err != nil {
		return TrackClickResult{}, err
	}
	if jar != nil {
		jar.Set(ports.Cookie{Name: s.cfg.AttributionCookieName, Value: cookieValue, Path: "/", Expires: expires, HTTPOnly: true})
		jar.Set(ports.Cookie{Name: s.cfg.ClickCookieName, Value: click.ClickID, Path: "/", Expires: expires, HTTPOnly: true})
	}

	_ = s.enqueueClickTracked(ctx, click, now)
	return TrackClickResult{
		Click:         click,
		CookieValue:   cookieValue,
		CookieExpires: expires,
		AffiliateCode: aff.Code,
	}, nil
}

// ResolveAttribution is the pure read used by checkout: it decodes the
// attribution cookie and returns the pinned affiliate, or nothing. It never
// mutates state and degrades to "no affiliate" on any invalid input.
func (s *Service) ResolveAttribution(ctx context.Context, jar ports.CookieJar) (domain.Affiliate, string, bool) {
	if jar == nil {
		return domain.Affiliate{}, "", false
	}
	raw, ok := jar.Get(s.cfg.AttributionCookieName)
	if !ok || raw == "" {
		return domain.Affiliate{}, "", false
	}
	claim, err := s.cookieCodec.Decode(raw, s.nowFn())
	if err != nil {
		return domain.Affiliate{}, "", false
	}
	aff, err := s.affiliates.GetByCode(ctx, claim.Code)
	if err != nil || !aff.CanAttribute() {
		return domain.Affiliate{}, "", false
	}
	clickID := claim.ClickID
	if v, ok := jar.Get(s.cfg.ClickCookieName); ok && v != "" {
		clickID = v
	}
	return aff, clickID, true
}

// Summary aggregates the affiliate-facing analytics view. The click ledger is
// advisory here; money figures come from the commission ledger.
func (s *Service) Summary(ctx context.Context, actor Actor) (AffiliateSummary, error) {
	aff, err := s.requireAffiliateActor(ctx, actor)
	if err != nil {
		return AffiliateSummary{}, err
	}
	total, err := s.clicks.CountByAffiliateID(ctx, aff.AffiliateID, false)
	if err != nil {
		return AffiliateSummary{}, err
	}
	converted, err := s.clicks.CountByAffiliateID(ctx, aff.AffiliateID, true)
	if err != nil {
		return AffiliateSummary{}, err
	}
	pending, _ := s.commissions.SumByAffiliateAndStatus(ctx, aff.AffiliateID, domain.CommissionStatusPending)
	approved, _ := s.commissions.SumByAffiliateAndStatus(ctx, aff.AffiliateID, domain.CommissionStatusApproved)
	paid, _ := s.commissions.SumByAffiliateAndStatus(ctx, aff.AffiliateID, domain.CommissionStatusPaid)

	rate := 0.0
	if total > 0 {
		rate = domain.RoundHalfUp(float64(converted)/float64(total)*100, 2)
	}
	return AffiliateSummary{
		Affiliate:       aff,
		TotalClicks:     total,
		ConvertedClicks: converted,
		ConversionRate:  rate,
		PendingAmount:   pending,
		ApprovedAmount:  approved,
		PaidAmount:      paid,
	}, nil
}

func (s *Service) requireAffiliateActor(ctx context.Context, actor Actor) (domain.Affiliate, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Affiliate{}, domain.ErrUnauthorized
	}
	aff, err := s.affiliates.GetByID(ctx, actor.SubjectID)
	if err != nil {
		return domain.Affiliate{}, err
	}
	return aff, nil
}

func (s *Service) enqueueClickTracked(ctx context.Context, click domain.Click, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventClickTracked, contracts.ClickTrackedPayload{
		AffiliateID: click.AffiliateID,
		ClickID:     click.ClickID,
		TargetRef:   click.TargetRef,
		Device:      string(click.Device),
		TrackedAt:   click.CreatedAt.UTC().Format(time.RFC3339),
	}, click.AffiliateID, now)
}
