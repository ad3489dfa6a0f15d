package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/application"
	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
	"github.com/go-chi/chi/v5"
)

type Handler struct{ service *application.Service }

func NewHandler(service *application.Service) *Handler { return &Handler{service: service} }

// trackClick records the visit and pins attribution cookies. A bad or
// inactive code degrades to attributed=false with HTTP 200: the storefront
// page must render no matter what the referral parameter carried.
func (h *Handler) trackClick(w http.ResponseWriter, r *http.Request) {
	var req contracts.TrackClickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	out, err := h.service.TrackClick(r.Context(), application.TrackClickInput{
		Code:      req.Code,
		TargetRef: req.TargetRef,
		ClientIP:  clientIP(r),
		UserAgent: strings.TrimSpace(r.UserAgent()),
	}, newCookieJar(w, r))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCode) || errors.Is(err, domain.ErrAffiliateNotActive) {
			writeSuccess(w, http.StatusOK, contracts.TrackClickResponse{Attributed: false, Reason: err.Error()})
			return
		}
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.TrackClickResponse{Attributed: true, ClickID: out.Click.ClickID})
}

func (h *Handler) paymentMethods(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.PaymentMethods(r.Context(), strings.TrimSpace(r.URL.Query().Get("code")))
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	rails := make([]contracts.PaymentMethodRail, 0, len(out.Rails))
	for _, acct := range out.Rails {
		item := contracts.PaymentMethodRail{
			Rail:           string(acct.Rail),
			Connected:      acct.ExternalAccountID != "" || acct.Rail == domain.RailManual,
			PayoutsEnabled: acct.PayoutsEnabled,
		}
		if !acct.LastCheckedAt.IsZero() {
			item.LastCheckedAt = acct.LastCheckedAt.UTC().Format(time.RFC3339)
		}
		rails = append(rails, item)
	}
	writeSuccess(w, http.StatusOK, contracts.PaymentMethodsResponse{
		AffiliateID:   out.Affiliate.AffiliateID,
		PreferredRail: string(out.Affiliate.PreferredRail),
		Rails:         rails,
	})
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Summary(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.AffiliateSummaryResponse{
		AffiliateID:     out.Affiliate.AffiliateID,
		Code:            out.Affiliate.Code,
		Status:          string(out.Affiliate.Status),
		TotalClicks:     out.TotalClicks,
		ConvertedClicks: out.ConvertedClicks,
		ConversionRate:  out.ConversionRate,
		PendingAmount:   out.PendingAmount,
		ApprovedAmount:  out.ApprovedAmount,
		PaidAmount:      out.PaidAmount,
		PreferredRail:   string(out.Affiliate.PreferredRail),
	})
}

func (h *Handler) onboardRail(w http.ResponseWriter, r *http.Request) {
	rail := domain.RailKind(chi.URLParam(r, "rail"))
	out, err := h.service.StartOnboarding(r.Context(), actorFromContext(r.Context()), rail)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.OnboardRailResponse{
		Rail:              string(out.Account.Rail),
		ExternalAccountID: out.Account.ExternalAccountID,
		RedirectURL:       out.RedirectURL,
	})
}

func (h *Handler) refreshRail(w http.ResponseWriter, r *http.Request) {
	rail := domain.RailKind(chi.URLParam(r, "rail"))
	out, err := h.service.RefreshRailStatus(r.Context(), actorFromContext(r.Context()), rail)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.RefreshRailResponse{
		Rail:           string(out.Account.Rail),
		Connected:      out.Status.Connected,
		PayoutsEnabled: out.Account.PayoutsEnabled,
		PreferredRail:  string(out.PreferredRail),
	})
}

func (h *Handler) disconnectRail(w http.ResponseWriter, r *http.Request) {
	rail := domain.RailKind(chi.URLParam(r, "rail"))
	aff, err := h.service.DisconnectRail(r.Context(), actorFromContext(r.Context()), rail)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{
		"rail":           string(rail),
		"preferred_rail": string(aff.PreferredRail),
	})
}

func (h *Handler) listCommissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ports.CommissionQuery{
		Status:      domain.CommissionStatus(strings.TrimSpace(q.Get("status"))),
		AffiliateID: strings.TrimSpace(q.Get("affiliate_id")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "from must be RFC3339")
			return
		}
		query.From = t
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "to must be RFC3339")
			return
		}
		query.To = t
	}
	query.Limit, _ = strconv.Atoi(q.Get("limit"))
	query.Offset, _ = strconv.Atoi(q.Get("offset"))

	rows, total, err := h.service.ListCommissions(r.Context(), actorFromContext(r.Context()), query)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	items := make([]contracts.CommissionResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, toCommissionResponse(row))
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	writeSuccess(w, http.StatusOK, contracts.CommissionListResponse{
		Items:      items,
		Pagination: contracts.Pagination{Limit: query.Limit, Offset: query.Offset, Total: total},
	})
}

func (h *Handler) getCommission(w http.ResponseWriter, r *http.Request) {
	row, err := h.service.GetCommission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "commission_id"))
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, toCommissionResponse(row))
}

func (h *Handler) approveCommission(w http.ResponseWriter, r *http.Request) {
	row, err := h.service.ApproveCommission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "commission_id"))
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, toCommissionResponse(row))
}

func (h *Handler) cancelCommission(w http.ResponseWriter, r *http.Request) {
	var req contracts.CancelCommissionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	row, err := h.service.CancelCommission(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "commission_id"), req.Reason)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, toCommissionResponse(row))
}

func (h *Handler) retryPayout(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DispatchPayout(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "commission_id"))
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, contracts.DispatchResponse{
		CommissionID: out.Commission.CommissionID,
		Success:      out.Success,
		Outcome:      string(out.Outcome),
		Rail:         string(out.Rail),
		TransferID:   out.TransferID,
		Amount:       out.Commission.Amount,
		Currency:     out.Commission.Currency,
		Message:      out.Message,
	})
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	var req contracts.MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	row, err := h.service.MarkPaidManually(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "commission_id"), req.ProofRef, req.Notes)
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, toCommissionResponse(row))
}

func (h *Handler) listPayoutAttempts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListPayoutAttempts(r.Context(), actorFromContext(r.Context()), chi.URLParam(r, "commission_id"))
	if err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

func (h *Handler) orderPaymentEvent(w http.ResponseWriter, r *http.Request) {
	var envelope contracts.EventEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	if err := h.service.HandleOrderPaymentEvent(r.Context(), envelope); err != nil {
		code, c := mapDomainError(err)
		writeError(w, code, c, err.Error())
		return
	}
	writeSuccess(w, http.StatusAccepted, map[string]string{"event_id": envelope.EventID})
}

func toCommissionResponse(row domain.Commission) contracts.CommissionResponse {
	out := contracts.CommissionResponse{
		CommissionID:         row.CommissionID,
		AffiliateID:          row.AffiliateID,
		OrderID:              row.OrderID,
		OrderTotal:           row.OrderTotal,
		Currency:             row.Currency,
		PolicyKind:           string(row.PolicyKind),
		PolicyValue:          row.PolicyValue,
		Amount:               row.Amount,
		Status:               string(row.Status),
		Method:               string(row.Method),
		ProofRef:             row.ProofRef,
		Notes:                row.Notes,
		RequiresManualReview: row.RequiresManualReview,
		FailureMessage:       row.FailureMessage,
		CreatedAt:            row.CreatedAt.UTC().Format(time.RFC3339),
	}
	if row.ApprovedAt != nil {
		out.ApprovedAt = row.ApprovedAt.UTC().Format(time.RFC3339)
	}
	if row.PaidAt != nil {
		out.PaidAt = row.PaidAt.UTC().Format(time.RFC3339)
	}
	if row.CancelledAt != nil {
		out.CancelledAt = row.CancelledAt.UTC().Format(time.RFC3339)
	}
	return out
}

func clientIP(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); raw != "" {
		parts := strings.Split(raw, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
