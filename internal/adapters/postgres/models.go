package postgres

import "time"

type affiliateModel struct {
	AffiliateID   string     `gorm:"column:affiliate_id;primaryKey"`
	Code          string     `gorm:"column:code"`
	Slug          string     `gorm:"column:slug"`
	Name          string     `gorm:"column:name"`
	Email         string     `gorm:"column:email"`
	Class         string     `gorm:"column:class"`
	Status        string     `gorm:"column:status"`
	PolicyKind    string     `gorm:"column:policy_kind"`
	PolicyValue   float64    `gorm:"column:policy_value"`
	PreferredRail string     `gorm:"column:preferred_rail"`
	AutoDispatch  bool       `gorm:"column:auto_dispatch"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
	DeactivatedAt *time.Time `gorm:"column:deactivated_at"`
}

func (affiliateModel) TableName() string { return "affiliates" }

type clickModel struct {
	ClickID     string     `gorm:"column:click_id;primaryKey"`
	AffiliateID string     `gorm:"column:affiliate_id"`
	TargetRef   string     `gorm:"column:target_ref"`
	ClientIP    string     `gorm:"column:client_ip"`
	UserAgent   string     `gorm:"column:user_agent"`
	Device      string     `gorm:"column:device"`
	Converted   bool       `gorm:"column:converted"`
	ConvertedAt *time.Time `gorm:"column:converted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
}

func (clickModel) TableName() string { return "affiliate_clicks" }

type commissionModel struct {
	CommissionID         string     `gorm:"column:commission_id;primaryKey"`
	AffiliateID          string     `gorm:"column:affiliate_id"`
	OrderID              string     `gorm:"column:order_id"`
	OrderTotal           float64    `gorm:"column:order_total"`
	Currency             string     `gorm:"column:currency"`
	PolicyKind           string     `gorm:"column:policy_kind"`
	PolicyValue          float64    `gorm:"column:policy_value"`
	Amount               float64    `gorm:"column:amount"`
	Status               string     `gorm:"column:status"`
	Method               string     `gorm:"column:method"`
	ProofRef             string     `gorm:"column:proof_ref"`
	Notes                string     `gorm:"column:notes"`
	RequiresManualReview bool       `gorm:"column:requires_manual_review"`
	FailureMessage       string     `gorm:"column:failure_message"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
	ApprovedAt           *time.Time `gorm:"column:approved_at"`
	PaidAt               *time.Time `gorm:"column:paid_at"`
	CancelledAt          *time.Time `gorm:"column:cancelled_at"`
}

func (commissionModel) TableName() string { return "commissions" }

type payoutAccountModel struct {
	AccountID         string     `gorm:"column:account_id;primaryKey"`
	AffiliateID       string     `gorm:"column:affiliate_id"`
	Rail              string     `gorm:"column:rail"`
	ExternalAccountID string     `gorm:"column:external_account_id"`
	PayoutsEnabled    bool       `gorm:"column:payouts_enabled"`
	FirstReadyAt      *time.Time `gorm:"column:first_ready_at"`
	LastCheckedAt     time.Time  `gorm:"column:last_checked_at"`
	ConnectedAt       time.Time  `gorm:"column:connected_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (payoutAccountModel) TableName() string { return "payout_accounts" }

type payoutAttemptModel struct {
	AttemptID    string    `gorm:"column:attempt_id;primaryKey"`
	CommissionID string    `gorm:"column:commission_id"`
	Rail         string    `gorm:"column:rail"`
	Outcome      string    `gorm:"column:outcome"`
	TransferID   string    `gorm:"column:transfer_id"`
	Message      string    `gorm:"column:message"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (payoutAttemptModel) TableName() string { return "payout_attempts" }

type settlementIdempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (settlementIdempotencyModel) TableName() string { return "settlement_idempotency" }

type settlementOutboxModel struct {
	RecordID       string     `gorm:"column:record_id;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	EventClass     string     `gorm:"column:event_class"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Envelope       string     `gorm:"column:envelope;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (settlementOutboxModel) TableName() string { return "settlement_outbox" }
