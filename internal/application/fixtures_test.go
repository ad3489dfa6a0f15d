package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
)

// In-memory ports used across the service tests. They mirror the persistence
// semantics the real adapters provide, most importantly the compare-and-set
// guard on commission transitions.

type memAffiliates struct {
	mu   sync.Mutex
	rows map[string]domain.Affiliate
}

func newMemAffiliates() *memAffiliates {
	return &memAffiliates{rows: map[string]domain.Affiliate{}}
}

func (m *memAffiliates) Create(_ context.Context, row domain.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.AffiliateID]; ok {
		return domain.ErrConflict
	}
	m.rows[row.AffiliateID] = row
	return nil
}

func (m *memAffiliates) GetByID(_ context.Context, affiliateID string) (domain.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[affiliateID]
	if !ok {
		return domain.Affiliate{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memAffiliates) GetByCode(_ context.Context, code string) (domain.Affiliate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Code == code {
			return row, nil
		}
	}
	return domain.Affiliate{}, domain.ErrNotFound
}

func (m *memAffiliates) Update(_ context.Context, row domain.Affiliate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.AffiliateID]; !ok {
		return domain.ErrNotFound
	}
	m.rows[row.AffiliateID] = row
	return nil
}

type memClicks struct {
	mu   sync.Mutex
	rows map[string]domain.Click
}

func newMemClicks() *memClicks {
	return &memClicks{rows: map[string]domain.Click{}}
}

func (m *memClicks) Append(_ context.Context, row domain.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.ClickID] = row
	return nil
}

func (m *memClicks) GetByID(_ context.Context, clickID string) (domain.Click, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[clickID]
	if !ok {
		return domain.Click{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memClicks) MarkConverted(_ context.Context, clickID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[clickID]
	if !ok {
		return domain.ErrNotFound
	}
	row.Converted = true
	m.rows[clickID] = row
	return nil
}

func (m *memClicks) ListByAffiliateID(_ context.Context, affiliateID string, _ int) ([]domain.Click, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Click, 0)
	for _, row := range m.rows {
		if row.AffiliateID == affiliateID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memClicks) CountByAffiliateID(_ context.Context, affiliateID string, convertedOnly bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.AffiliateID != affiliateID {
			continue
		}
		if convertedOnly && !row.Converted {
			continue
		}
		count++
	}
	return count, nil
}

type memCommissions struct {
	mu   sync.Mutex
	rows map[string]domain.Commission
}

func newMemCommissions() *memCommissions {
	return &memCommissions{rows: map[string]domain.Commission{}}
}

func (m *memCommissions) Create(_ context.Context, row domain.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.OrderID == row.OrderID {
			return domain.ErrConflict
		}
	}
	m.rows[row.CommissionID] = row
	return nil
}

func (m *memCommissions) GetByID(_ context.Context, commissionID string) (domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[commissionID]
	if !ok {
		return domain.Commission{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memCommissions) GetByOrderID(_ context.Context, orderID string) (domain.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.OrderID == orderID {
			return row, nil
		}
	}
	return domain.Commission{}, domain.ErrNotFound
}

func (m *memCommissions) List(_ context.Context, query ports.CommissionQuery) ([]domain.Commission, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Commission, 0)
	for _, row := range m.rows {
		if query.Status != "" && row.Status != query.Status {
			continue
		}
		if query.AffiliateID != "" && row.AffiliateID != query.AffiliateID {
			continue
		}
		if !query.From.IsZero() && row.CreatedAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && !row.CreatedAt.Before(query.To) {
			continue
		}
		out = append(out, row)
	}
	return out, len(out), nil
}

func (m *memCommissions) Update(_ context.Context, row domain.Commission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[row.CommissionID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Method = row.Method
	stored.Notes = row.Notes
	stored.RequiresManualReview = row.RequiresManualReview
	stored.FailureMessage = row.FailureMessage
	stored.UpdatedAt = row.UpdatedAt
	m.rows[row.CommissionID] = stored
	return nil
}

func (m *memCommissions) Transition(_ context.Context, row domain.Commission, expect domain.CommissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[row.CommissionID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != expect {
		return domain.ErrConflict
	}
	m.rows[row.CommissionID] = row
	return nil
}

func (m *memCommissions) SumByAffiliateAndStatus(_ context.Context, affiliateID string, status domain.CommissionStatus) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0.0
	for _, row := range m.rows {
		if row.AffiliateID == affiliateID && row.Status == status {
			total += row.Amount
		}
	}
	return total, nil
}

type memPayoutAccounts struct {
	mu     sync.Mutex
	rows   map[string]domain.PayoutAccount
	getErr error
}

func newMemPayoutAccounts() *memPayoutAccounts {
	return &memPayoutAccounts{rows: map[string]domain.PayoutAccount{}}
}

func accountKey(affiliateID string, rail domain.RailKind) string {
	return affiliateID + "/" + string(rail)
}

func (m *memPayoutAccounts) Upsert(_ context.Context, row domain.PayoutAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[accountKey(row.AffiliateID, row.Rail)] = row
	return nil
}

func (m *memPayoutAccounts) Get(_ context.Context, affiliateID string, rail domain.RailKind) (domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.PayoutAccount{}, m.getErr
	}
	row, ok := m.rows[accountKey(affiliateID, rail)]
	if !ok {
		return domain.PayoutAccount{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memPayoutAccounts) ListByAffiliateID(_ context.Context, affiliateID string) ([]domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PayoutAccount, 0)
	for _, row := range m.rows {
		if row.AffiliateID == affiliateID {
			out = append(out, row)
		}
	}
	return out, nil
}

type memPayoutAttempts struct {
	mu   sync.Mutex
	rows []domain.PayoutAttempt
}

func newMemPayoutAttempts() *memPayoutAttempts {
	return &memPayoutAttempts{}
}

func (m *memPayoutAttempts) Append(_ context.Context, row domain.PayoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *memPayoutAttempts) ListByCommissionID(_ context.Context, commissionID string) ([]domain.PayoutAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PayoutAttempt, 0)
	for _, row := range m.rows {
		if row.CommissionID == commissionID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memPayoutAttempts) HasSuccess(_ context.Context, commissionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.CommissionID == commissionID && row.Outcome == domain.PayoutOutcomeSuccess {
			return true, nil
		}
	}
	return false, nil
}

type memIdempotency struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{rows: map[string]ports.IdempotencyRecord{}}
}

func (m *memIdempotency) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[key]
	if !ok || rec.ExpiresAt.Before(now) {
		return nil, nil
	}
	out := rec
	return &out, nil
}

func (m *memIdempotency) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[key]; ok {
		return domain.ErrConflict
	}
	m.rows[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	return nil
}

func (m *memIdempotency) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	rec.ResponseCode = responseCode
	rec.ResponseBody = responseBody
	m.rows[key] = rec
	return nil
}

type memOutbox struct {
	mu   sync.Mutex
	rows []ports.OutboxRecord
}

func newMemOutbox() *memOutbox { return &memOutbox{} }

func (m *memOutbox) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, record)
	return nil
}

func (m *memOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.OutboxRecord, 0)
	for i := range m.rows {
		if len(out) >= limit {
			break
		}
		if m.rows[i].PublishedAt != nil || m.rows[i].DeadLettered {
			continue
		}
		m.rows[i].ClaimToken = claimToken
		until := claimUntil
		m.rows[i].ClaimUntil = &until
		out = append(out, m.rows[i])
	}
	return out, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, recordID, claimToken string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].RecordID == recordID && m.rows[i].ClaimToken == claimToken {
			published := at
			m.rows[i].PublishedAt = &published
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memOutbox) MarkFailed(_ context.Context, recordID, claimToken, reason string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].RecordID == recordID && m.rows[i].ClaimToken == claimToken {
			m.rows[i].RetryCount++
			m.rows[i].LastError = reason
			m.rows[i].ClaimToken = ""
			m.rows[i].ClaimUntil = nil
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memOutbox) MarkDeadLettered(_ context.Context, recordID, claimToken, reason string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].RecordID == recordID && m.rows[i].ClaimToken == claimToken {
			m.rows[i].DeadLettered = true
			m.rows[i].LastError = reason
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memOutbox) records() []ports.OutboxRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.OutboxRecord, len(m.rows))
	copy(out, m.rows)
	return out
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDedup() *memDedup { return &memDedup{seen: map[string]bool{}} }

func (m *memDedup) IsDuplicate(_ context.Context, eventID string, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID], nil
}

func (m *memDedup) MarkProcessed(_ context.Context, eventID, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID] = true
	return nil
}

type memAnalytics struct {
	mu   sync.Mutex
	rows []contracts.EventEnvelope
}

func (m *memAnalytics) PublishAnalytics(_ context.Context, envelope contracts.EventEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, envelope)
	return nil
}

func (m *memAnalytics) records() []contracts.EventEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]contracts.EventEnvelope, len(m.rows))
	copy(out, m.rows)
	return out
}

type memRailCache struct{}

func (memRailCache) Get(context.Context, string, domain.RailKind) (*domain.RailStatus, error) {
	return nil, nil
}

func (memRailCache) Set(context.Context, string, domain.RailKind, domain.RailStatus, time.Duration) error {
	return nil
}

// stubRail is a scriptable payout rail. TransferFn and friends default to
// success when unset; transferCount tracks how many transfers actually ran.
type stubRail struct {
	kind          domain.RailKind
	onboardFn     func(domain.Affiliate, string) (ports.OnboardingSession, error)
	checkReadyFn  func(string) (domain.RailStatus, error)
	transferFn    func(ports.TransferRequest) (ports.TransferResult, error)
	mu            sync.Mutex
	transferCount int
}

func (r *stubRail) Kind() domain.RailKind { return r.kind }

func (r *stubRail) StartOnboarding(_ context.Context, aff domain.Affiliate, existing string) (ports.OnboardingSession, error) {
	if r.onboardFn != nil {
		return r.onboardFn(aff, existing)
	}
	id := existing
	if id == "" {
		id = "acct_" + aff.AffiliateID
	}
	return ports.OnboardingSession{ExternalAccountID: id, RedirectURL: "https://rail.test/onboard/" + id}, nil
}

func (r *stubRail) CheckReady(_ context.Context, externalAccountID string) (domain.RailStatus, error) {
	if r.checkReadyFn != nil {
		return r.checkReadyFn(externalAccountID)
	}
	return domain.RailStatus{Connected: true, PayoutsEnabled: true}, nil
}

func (r *stubRail) Transfer(_ context.Context, req ports.TransferRequest) (ports.TransferResult, error) {
	r.mu.Lock()
	r.transferCount++
	r.mu.Unlock()
	if r.transferFn != nil {
		return r.transferFn(req)
	}
	return ports.TransferResult{TransferID: "tr_" + req.CommissionID}, nil
}

func (r *stubRail) transfers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transferCount
}

type stubRailSet map[domain.RailKind]ports.PayoutRail

func (s stubRailSet) Rail(kind domain.RailKind) (ports.PayoutRail, bool) {
	rail, ok := s[kind]
	return rail, ok
}

type stubOrders struct {
	orders map[string]ports.OrderSnapshot
}

func (s stubOrders) GetOrder(_ context.Context, orderID string) (ports.OrderSnapshot, error) {
	snapshot, ok := s.orders[orderID]
	if !ok {
		return ports.OrderSnapshot{}, domain.ErrNotFound
	}
	return snapshot, nil
}

// plainCodec is an unsigned cookie codec; tamper resistance is covered by the
// real codec's own tests.
type plainCodec struct{}

func (plainCodec) Encode(claim ports.AttributionClaim) (string, error) {
	return fmt.Sprintf("%s|%s|%d", claim.Code, claim.ClickID, claim.ExpiresAt.Unix()), nil
}

func (plainCodec) Decode(value string, now time.Time) (ports.AttributionClaim, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 3 {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	var unix int64
	if _, err := fmt.Sscanf(parts[2], "%d", &unix); err != nil {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	expires := time.Unix(unix, 0)
	if !expires.After(now) {
		return ports.AttributionClaim{}, domain.ErrInvalidInput
	}
	return ports.AttributionClaim{Code: parts[0], ClickID: parts[1], ExpiresAt: expires}, nil
}

type memJar struct {
	cookies map[string]string
}

func newMemJar() *memJar { return &memJar{cookies: map[string]string{}} }

func (j *memJar) Get(name string) (string, bool) {
	v, ok := j.cookies[name]
	return v, ok
}

func (j *memJar) Set(cookie ports.Cookie) {
	j.cookies[cookie.Name] = cookie.Value
}

type fixture struct {
	svc            *Service
	affiliates     *memAffiliates
	clicks         *memClicks
	commissions    *memCommissions
	payoutAccounts *memPayoutAccounts
	payoutAttempts *memPayoutAttempts
	idempotency    *memIdempotency
	outbox         *memOutbox
	dedup          *memDedup
	analytics      *memAnalytics
	rail           *stubRail
	orders         map[string]ports.OrderSnapshot
}

func newFixture() *fixture {
	f := &fixture{
		affiliates:     newMemAffiliates(),
		clicks:         newMemClicks(),
		commissions:    newMemCommissions(),
		payoutAccounts: newMemPayoutAccounts(),
		payoutAttempts: newMemPayoutAttempts(),
		idempotency:    newMemIdempotency(),
		outbox:         newMemOutbox(),
		dedup:          newMemDedup(),
		analytics:      &memAnalytics{},
		rail:           &stubRail{kind: domain.RailStripeConnect},
		orders:         map[string]ports.OrderSnapshot{},
	}
	f.svc = NewService(Dependencies{
		Affiliates:     f.affiliates,
		Clicks:         f.clicks,
		Commissions:    f.commissions,
		PayoutAccounts: f.payoutAccounts,
		PayoutAttempts: f.payoutAttempts,
		Idempotency:    f.idempotency,
		Outbox:         f.outbox,
		EventDedup:     f.dedup,
		RailStatus:     memRailCache{},
		Rails:          stubRailSet{domain.RailStripeConnect: f.rail},
		Orders:         stubOrders{orders: f.orders},
		CookieCodec:    plainCodec{},
		Analytics:      f.analytics,
	})
	return f
}

func (f *fixture) seedAffiliate(id, code string, status domain.AffiliateStatus) domain.Affiliate {
	aff := domain.Affiliate{
		AffiliateID:   id,
		Code:          code,
		Name:          "Test Affiliate",
		Email:         id + "@example.com",
		Class:         domain.AffiliateClassStandard,
		Status:        status,
		PolicyKind:    domain.PolicyKindPercent,
		PolicyValue:   10,
		PreferredRail: domain.RailManual,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	_ = f.affiliates.Create(context.Background(), aff)
	return aff
}

func (f *fixture) seedApprovedCommission(id, affiliateID, orderID string, amount float64) domain.Commission {
	now := time.Now().UTC()
	row := domain.Commission{
		CommissionID: id,
		AffiliateID:  affiliateID,
		OrderID:      orderID,
		OrderTotal:   amount * 10,
		Currency:     "USD",
		PolicyKind:   domain.PolicyKindPercent,
		PolicyValue:  10,
		Amount:       amount,
		Status:       domain.CommissionStatusApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
		ApprovedAt:   &now,
	}
	_ = f.commissions.Create(context.Background(), row)
	return row
}

func (f *fixture) seedReadyAccount(affiliateID string, rail domain.RailKind) domain.PayoutAccount {
	now := time.Now().UTC()
	account := domain.PayoutAccount{
		AccountID:         "pacct_" + affiliateID,
		AffiliateID:       affiliateID,
		Rail:              rail,
		ExternalAccountID: "acct_" + affiliateID,
		PayoutsEnabled:    true,
		FirstReadyAt:      &now,
		LastCheckedAt:     now,
		ConnectedAt:       now,
		UpdatedAt:         now,
	}
	_ = f.payoutAccounts.Upsert(context.Background(), account)
	return account
}

func capturedEnvelope(eventID, orderID, affiliateID string, total float64) contracts.EventEnvelope {
	return paymentEnvelope(eventID, domain.EventOrderPaymentCaptured, orderID, affiliateID, total)
}

func paymentEnvelope(eventID, eventType, orderID, affiliateID string, total float64) contracts.EventEnvelope {
	payload := fmt.Sprintf(`{"order_id":%q,"affiliate_id":%q,"total":%g,"currency":"USD"}`, orderID, affiliateID, total)
	return contracts.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		SourceService: "Order-Service",
		SchemaVersion: "v1",
		Data:          []byte(payload),
	}
}
