package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

type OrderClientConfig struct {
	BaseURL      string
	ServiceToken string
	HTTPClient   *http.Client
}

// HTTPOrderReader reads order snapshots from the checkout service. It is the
// reconciliation fallback for payment events that arrive without order fields.
type HTTPOrderReader struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func NewHTTPOrderReader(cfg OrderClientConfig) *HTTPOrderReader {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	return &HTTPOrderReader{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		serviceToken: cfg.ServiceToken,
		httpClient:   httpClient,
	}
}

type orderResponse struct {
	Data struct {
		OrderID      string  `json:"order_id"`
		AffiliateID  string  `json:"affiliate_id"`
		Total        float64 `json:"total"`
		Currency     string  `json:"currency"`
		PaymentState string  `json:"payment_state"`
	} `json:"data"`
}

func (r *HTTPOrderReader) GetOrder(ctx context.Context, orderID string) (ports.OrderSnapshot, error) {
	endpoint := r.baseURL + "/internal/v1/orders/" + url.PathEscape(orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ports.OrderSnapshot{}, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.serviceToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return ports.OrderSnapshot{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ports.OrderSnapshot{}, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return ports.OrderSnapshot{}, fmt.Errorf("get order %s: unexpected status %d", orderID, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.OrderSnapshot{}, fmt.Errorf("read order response: %w", err)
	}
	var parsed orderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ports.OrderSnapshot{}, fmt.Errorf("decode order response: %w", err)
	}
	return ports.OrderSnapshot{
		OrderID:      parsed.Data.OrderID,
		AffiliateID:  parsed.Data.AffiliateID,
		Total:        parsed.Data.Total,
		Currency:     parsed.Data.Currency,
		PaymentState: parsed.Data.PaymentState,
	}, nil
}
