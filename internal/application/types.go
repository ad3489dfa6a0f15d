package application

import (
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

type Config struct {
	ServiceName string

	// CookieWindowDays is the tenant-configurable attribution window.
	CookieWindowDays      int
	AttributionCookieName string
	ClickCookieName       string

	DefaultCurrency    string
	IdempotencyTTL     time.Duration
	EventDedupTTL      time.Duration
	RailStatusCacheTTL time.Duration
	RailCallTimeout    time.Duration

	OutboxFlushBatchSize int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type TrackClickInput struct {
	Code      string
	TargetRef string
	ClientIP  string
	UserAgent string
}

type TrackClickResult struct {
	Click         domain.Click
	CookieValue   string
	CookieExpires time.Time
	AffiliateCode string
}

type AffiliateSummary struct {
	Affiliate       domain.Affiliate
	TotalClicks     int
	ConvertedClicks int
	ConversionRate  float64
	PendingAmount   float64
	ApprovedAmount  float64
	PaidAmount      float64
}

type PaymentMethods struct {
	Affiliate domain.Affiliate
	Rails     []domain.PayoutAccount
}

type OnboardResult struct {
	Account     domain.PayoutAccount
	RedirectURL string
}

type RefreshResult struct {
	Account       domain.PayoutAccount
	Status        domain.RailStatus
	PreferredRail domain.RailKind
}

// DispatchResult is the normalized dispatcher answer. Success implies a
// non-empty TransferID; every non-success outcome leaves the commission
// approved and eligible for a later retry or manual settlement.
type DispatchResult struct {
	Commission domain.Commission
	Success    bool
	Outcome    domain.PayoutOutcome
	Rail       domain.RailKind
	TransferID string
	Message    string
}

type Service struct {
	cfg Config

	affiliates     ports.AffiliateRepository
	clicks         ports.ClickRepository
	commissions    ports.CommissionRepository
	payoutAccounts ports.PayoutAccountRepository
	payoutAttempts ports.PayoutAttemptRepository
	idempotency    ports.IdempotencyRepository
	outbox         ports.OutboxRepository
	eventDedup     ports.EventDedupStore
	railStatus     ports.RailStatusCache

	rails       ports.RailSet
	orders      ports.OrderReader
	cookieCodec ports.AttributionCookieCodec

	analytics ports.AnalyticsPublisher

	nowFn func() time.Time
}

type Dependencies struct {
	Config Config

	Affiliates     ports.AffiliateRepository
	Clicks         ports.ClickRepository
	Commissions    ports.CommissionRepository
	PayoutAccounts ports.PayoutAccountRepository
	PayoutAttempts ports.PayoutAttemptRepository
	Idempotency    ports.IdempotencyRepository
	Outbox         ports.OutboxRepository
	EventDedup     ports.EventDedupStore
	RailStatus     ports.RailStatusCache

	Rails       ports.RailSet
	Orders      ports.OrderReader
	CookieCodec ports.AttributionCookieCodec

	Analytics ports.AnalyticsPublisher
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "Affiliate-Settlement-Service"
	}
	if cfg.CookieWindowDays <= 0 {
		cfg.CookieWindowDays = 30
	}
	if cfg.AttributionCookieName == "" {
		cfg.AttributionCookieName = "aff_ref"
	}
	if cfg.ClickCookieName == "" {
		cfg.ClickCookieName = "aff_click_id"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.RailStatusCacheTTL <= 0 {
		cfg.RailStatusCacheTTL = 5 * time.Minute
	}
	if cfg.RailCallTimeout <= 0 {
		cfg.RailCallTimeout = 15 * time.Second
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	return &Service{
		cfg:            cfg,
		affiliates:     deps.Affiliates,
		clicks:         deps.Clicks,
		commissions:    deps.Commissions,
		payoutAccounts: deps.PayoutAccounts,
		payoutAttempts: deps.PayoutAttempts,
		idempotency:    deps.Idempotency,
		outbox:         deps.Outbox,
		eventDedup:     deps.EventDedup,
		railStatus:     deps.RailStatus,
		rails:          deps.Rails,
		orders:         deps.Orders,
		cookieCodec:    deps.CookieCodec,
		analytics:      deps.Analytics,
		nowFn:          func() time.Time { return time.Now().UTC() },
	}
}
