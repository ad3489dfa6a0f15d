package contracts

type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type TrackClickRequest struct {
	Code      string `json:"code"`
	TargetRef string `json:"target_ref,omitempty"`
}

// TrackClickResponse is returned for both attributed and unattributed visits:
// attribution is best-effort, so a bad code yields attributed=false with a
// diagnostic reason instead of an error status.
type TrackClickResponse struct {
	Attributed bool   `json:"attributed"`
	ClickID    string `json:"click_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type PaymentMethodsResponse struct {
	AffiliateID   string              `json:"affiliate_id"`
	PreferredRail string              `json:"preferred_rail"`
	Rails         []PaymentMethodRail `json:"rails"`
}

type PaymentMethodRail struct {
	Rail           string `json:"rail"`
	Connected      bool   `json:"connected"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	LastCheckedAt  string `json:"last_checked_at,omitempty"`
}

type AffiliateSummaryResponse struct {
	AffiliateID     string  `json:"affiliate_id"`
	Code            string  `json:"code"`
	Status          string  `json:"status"`
	TotalClicks     int     `json:"total_clicks"`
	ConvertedClicks int     `json:"converted_clicks"`
	ConversionRate  float64 `json:"conversion_rate"`
	PendingAmount   float64 `json:"pending_amount"`
	ApprovedAmount  float64 `json:"approved_amount"`
	PaidAmount      float64 `json:"paid_amount"`
	PreferredRail   string  `json:"preferred_rail"`
}

type OnboardRailResponse struct {
	Rail              string `json:"rail"`
	ExternalAccountID string `json:"external_account_id"`
	RedirectURL       string `json:"redirect_url"`
}

type RefreshRailResponse struct {
	Rail           string `json:"rail"`
	Connected      bool   `json:"connected"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	PreferredRail  string `json:"preferred_rail"`
}

type CommissionResponse struct {
	CommissionID         string  `json:"commission_id"`
	AffiliateID          string  `json:"affiliate_id"`
	OrderID              string  `json:"order_id"`
	OrderTotal           float64 `json:"order_total"`
	Currency             string  `json:"currency"`
	PolicyKind           string  `json:"policy_kind"`
	PolicyValue          float64 `json:"policy_value"`
	Amount               float64 `json:"amount"`
	Status               string  `json:"status"`
	Method               string  `json:"method,omitempty"`
	ProofRef             string  `json:"proof_ref,omitempty"`
	Notes                string  `json:"notes,omitempty"`
	RequiresManualReview bool    `json:"requires_manual_review"`
	FailureMessage       string  `json:"failure_message,omitempty"`
	CreatedAt            string  `json:"created_at"`
	ApprovedAt           string  `json:"approved_at,omitempty"`
	PaidAt               string  `json:"paid_at,omitempty"`
	CancelledAt          string  `json:"cancelled_at,omitempty"`
}

type CommissionListResponse struct {
	Items      []CommissionResponse `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type MarkPaidRequest struct {
	ProofRef string `json:"proof_ref"`
	Notes    string `json:"notes,omitempty"`
}

type CancelCommissionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type DispatchResponse struct {
	CommissionID string  `json:"commission_id"`
	Success      bool    `json:"success"`
	Outcome      string  `json:"outcome"`
	Rail         string  `json:"rail,omitempty"`
	TransferID   string  `json:"transfer_id,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Message      string  `json:"message,omitempty"`
}
