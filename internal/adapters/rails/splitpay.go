package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// SplitPayConfig points at the marketplace split-payment provider.
type SplitPayConfig struct {
	BaseURL    string
	APIKey     string
	ReturnURL  string
	HTTPClient *http.Client
}

// SplitPayRail settles commissions through the split-payment provider's
// recipient API. The provider has no Go SDK; this is a thin JSON client over
// its three endpoints.
type SplitPayRail struct {
	baseURL    string
	apiKey     string
	returnURL  string
	httpClient *http.Client
}

func NewSplitPayRail(cfg SplitPayConfig) *SplitPayRail {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &SplitPayRail{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		returnURL:  cfg.ReturnURL,
		httpClient: httpClient,
	}
}

func (r *SplitPayRail) Kind() domain.RailKind {
	return domain.RailSplitPay
}

type splitPayRecipientRequest struct {
	ExternalRef string `json:"external_ref"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ReturnURL   string `json:"return_url"`
}

type splitPayRecipientResponse struct {
	RecipientID   string `json:"recipient_id"`
	OnboardingURL string `json:"onboarding_url"`
}

type splitPayStatusResponse struct {
	RecipientID    string `json:"recipient_id"`
	Status         string `json:"status"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

type splitPayTransferRequest struct {
	RecipientID string  `json:"recipient_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Reference   string  `json:"reference"`
}

type splitPayTransferResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

type splitPayErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *SplitPayRail) StartOnboarding(ctx context.Context, affiliate domain.Affiliate, existingAccountID string) (ports.OnboardingSession, error) {
	body := splitPayRecipientRequest{
		ExternalRef: affiliate.AffiliateID,
		Email:       affiliate.Email,
		Name:        affiliate.Name,
		ReturnURL:   r.returnURL,
	}
	path := "/v1/recipients"
	if existingAccountID != "" {
		path = "/v1/recipients/" + url.PathEscape(existingAccountID) + "/onboarding"
	}

	var resp splitPayRecipientResponse
	if err := r.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return ports.OnboardingSession{}, err
	}
	accountID := resp.RecipientID
	if accountID == "" {
		accountID = existingAccountID
	}
	return ports.OnboardingSession{
		ExternalAccountID: accountID,
		RedirectURL:       resp.OnboardingURL,
	}, nil
}

func (r *SplitPayRail) CheckReady(ctx context.Context, externalAccountID string) (domain.RailStatus, error) {
	if externalAccountID == "" {
		return domain.RailStatus{}, nil
	}
	var resp splitPayStatusResponse
	err := r.do(ctx, http.MethodGet, "/v1/recipients/"+url.PathEscape(externalAccountID), "", nil, &resp)
	if err != nil {
		var railErr *ports.RailError
		if errors.As(err, &railErr) && railErr.Code == "not_found" {
			return domain.RailStatus{}, nil
		}
		return domain.RailStatus{}, err
	}
	return domain.RailStatus{
		Connected:      resp.Status == "active" || resp.Status == "pending",
		PayoutsEnabled: resp.PayoutsEnabled,
	}, nil
}

func (r *SplitPayRail) Transfer(ctx context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	body := splitPayTransferRequest{
		RecipientID: req.DestinationAccountID,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		Reference:   req.CommissionID,
	}
	var resp splitPayTransferResponse
	if err := r.do(ctx, http.MethodPost, "/v1/transfers", req.IdempotencyKey, body, &resp); err != nil {
		return ports.TransferResult{}, err
	}
	return ports.TransferResult{TransferID: resp.TransferID}, nil
}

// do executes one provider call and normalizes failures: 4xx responses are
// permanent rail rejections, 5xx and transport errors are transient.
func (r *SplitPayRail) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal split-pay request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build split-pay request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("split-pay %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read split-pay response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode split-pay response: %w", err)
		}
		return nil
	}

	railErr := &ports.RailError{
		Code:      fmt.Sprintf("http_%d", resp.StatusCode),
		Message:   strings.TrimSpace(string(raw)),
		Permanent: resp.StatusCode >= 400 && resp.StatusCode < 500,
	}
	var provider splitPayErrorResponse
	if json.Unmarshal(raw, &provider) == nil && provider.Code != "" {
		railErr.Code = provider.Code
		railErr.Message = provider.Message
	}
	if resp.StatusCode == http.StatusNotFound {
		railErr.Code = "not_found"
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		railErr.Permanent = false
	}
	return railErr
}
