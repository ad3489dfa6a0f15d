package rails

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

// StripeConfig carries the Connect credentials and the onboarding return
// surface for hosted account links.
type StripeConfig struct {
	APIKey     string
	RefreshURL string
	ReturnURL  string
}

// StripeRail settles commissions as transfers to Express connected accounts.
type StripeRail struct {
	api *client.API
	cfg StripeConfig
}

func NewStripeRail(cfg StripeConfig) *StripeRail {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)
	return &StripeRail{api: api, cfg: cfg}
}

func (r *StripeRail) Kind() domain.RailKind {
	return domain.RailStripeConnect
}

// StartOnboarding creates an Express account on first contact and hands back
// a hosted account-link URL. An existing external account is reused so a
// second onboarding attempt resumes instead of forking identities.
func (r *StripeRail) StartOnboarding(ctx context.Context, affiliate domain.Affiliate, existingAccountID string) (ports.OnboardingSession, error) {
	accountID := existingAccountID
	if accountID == "" {
		params := &stripe.AccountParams{
			Params: stripe.Params{Context: ctx},
			Type:   stripe.String(string(stripe.AccountTypeExpress)),
			Email:  stripe.String(affiliate.Email),
			Metadata: map[string]string{
				"affiliate_id": affiliate.AffiliateID,
			},
		}
		acct, err := r.api.Accounts.New(params)
		if err != nil {
			return ports.OnboardingSession{}, mapStripeError("create account", err)
		}
		accountID = acct.ID
	}

	link, err := r.api.AccountLinks.New(&stripe.AccountLinkParams{
		Params:     stripe.Params{Context: ctx},
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(r.cfg.RefreshURL),
		ReturnURL:  stripe.String(r.cfg.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return ports.OnboardingSession{}, mapStripeError("create account link", err)
	}
	return ports.OnboardingSession{
		ExternalAccountID: accountID,
		RedirectURL:       link.URL,
	}, nil
}

// CheckReady folds Stripe's account flags into the normalized readiness
// shape. Payouts require both charges and payouts enabled on the account.
func (r *StripeRail) CheckReady(ctx context.Context, externalAccountID string) (domain.RailStatus, error) {
	if externalAccountID == "" {
		return domain.RailStatus{}, nil
	}
	acct, err := r.api.Accounts.GetByID(externalAccountID, &stripe.AccountParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return domain.RailStatus{}, nil
		}
		return domain.RailStatus{}, mapStripeError("get account", err)
	}
	return domain.RailStatus{
		Connected:      acct.DetailsSubmitted,
		PayoutsEnabled: acct.ChargesEnabled && acct.PayoutsEnabled,
	}, nil
}

func (r *StripeRail) Transfer(ctx context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(toMinorUnits(req.Amount, req.Currency)),
		Currency:    stripe.String(currency),
		Destination: stripe.String(req.DestinationAccountID),
		Metadata: map[string]string{
			"commission_id": req.CommissionID,
		},
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	transfer, err := r.api.Transfers.New(params)
	if err != nil {
		return ports.TransferResult{}, mapStripeError("create transfer", err)
	}
	return ports.TransferResult{TransferID: transfer.ID}, nil
}

// toMinorUnits converts a decimal amount to the integer minor units Stripe
// expects, honoring zero and three decimal currencies.
func toMinorUnits(amount float64, currency string) int64 {
	scale := math.Pow10(domain.MinorUnits(currency))
	return int64(math.Floor(amount*scale + 0.5))
}

// mapStripeError classifies Stripe rejections. Request and card class errors
// will not succeed on retry; API and connectivity failures may.
func mapStripeError(operation string, err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s: %w", operation, err)
	}
	permanent := stripeErr.Type == stripe.ErrorTypeInvalidRequest ||
		stripeErr.Type == stripe.ErrorTypeCard
	return &ports.RailError{
		Code:      string(stripeErr.Code),
		Message:   fmt.Sprintf("stripe %s: %s", operation, stripeErr.Msg),
		Permanent: permanent,
	}
}
