package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
	"gorm.io/gorm"
)

// Repositories bundles every persistence port backed by one Postgres pool.
type Repositories struct {
	Affiliates     ports.AffiliateRepository
	Clicks         ports.ClickRepository
	Commissions    ports.CommissionRepository
	PayoutAccounts ports.PayoutAccountRepository
	PayoutAttempts ports.PayoutAttemptRepository
	Idempotency    ports.IdempotencyRepository
	Outbox         ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Affiliates:     &affiliateRepository{db: db},
		Clicks:         &clickRepository{db: db},
		Commissions:    &commissionRepository{db: db},
		PayoutAccounts: &payoutAccountRepository{db: db},
		PayoutAttempts: &payoutAttemptRepository{db: db},
		Idempotency:    &idempotencyRepository{db: db},
		Outbox:         &outboxRepository{db: db},
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

type affiliateRepository struct {
	db *gorm.DB
}

func (r *affiliateRepository) Create(ctx context.Context, row domain.Affiliate) error {
	rec := toAffiliateModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *affiliateRepository) GetByID(ctx context.Context, affiliateID string) (domain.Affiliate, error) {
	var m affiliateModel
	if err := r.db.WithContext(ctx).First(&m, "affiliate_id = ?", affiliateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Affiliate{}, domain.ErrNotFound
		}
		return domain.Affiliate{}, err
	}
	return toDomainAffiliate(m), nil
}

func (r *affiliateRepository) GetByCode(ctx context.Context, code string) (domain.Affiliate, error) {
	var m affiliateModel
	if err := r.db.WithContext(ctx).First(&m, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Affiliate{}, domain.ErrNotFound
		}
		return domain.Affiliate{}, err
	}
	return toDomainAffiliate(m), nil
}

func (r *affiliateRepository) Update(ctx context.Context, row domain.Affiliate) error {
	rec := toAffiliateModel(row)
	result := r.db.WithContext(ctx).
		Model(&affiliateModel{}).
		Where("affiliate_id = ?", rec.AffiliateID).
		Updates(map[string]any{
			"slug":           rec.Slug,
			"name":           rec.Name,
			"email":          rec.Email,
			"status":         rec.Status,
			"policy_kind":    rec.PolicyKind,
			"policy_value":   rec.PolicyValue,
			"preferred_rail": rec.PreferredRail,
			"auto_dispatch":  rec.AutoDispatch,
			"updated_at":     rec.UpdatedAt,
			"deactivated_at": rec.DeactivatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type clickRepository struct {
	db *gorm.DB
}

func (r *clickRepository) Append(ctx context.Context, row domain.Click) error {
	rec := toClickModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *clickRepository) GetByID(ctx context.Context, clickID string) (domain.Click, error) {
	var m clickModel
	if err := r.db.WithContext(ctx).First(&m, "click_id = ?", clickID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Click{}, domain.ErrNotFound
		}
		return domain.Click{}, err
	}
	return toDomainClick(m), nil
}

func (r *clickRepository) MarkConverted(ctx context.Context, clickID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&clickModel{}).
		Where("click_id = ?", clickID).
		Updates(map[string]any{
			"converted":    true,
			"converted_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *clickRepository) ListByAffiliateID(ctx context.Context, affiliateID string, limit int) ([]domain.Click, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []clickModel
	if err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Click, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainClick(m))
	}
	return result, nil
}

func (r *clickRepository) CountByAffiliateID(ctx context.Context, affiliateID string, convertedOnly bool) (int, error) {
	query := r.db.WithContext(ctx).
		Model(&clickModel{}).
		Where("affiliate_id = ?", affiliateID)
	if convertedOnly {
		query = query.Where("converted = TRUE")
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

type commissionRepository struct {
	db *gorm.DB
}

func (r *commissionRepository) Create(ctx context.Context, row domain.Commission) error {
	rec := toCommissionModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *commissionRepository) GetByID(ctx context.Context, commissionID string) (domain.Commission, error) {
	var m commissionModel
	if err := r.db.WithContext(ctx).First(&m, "commission_id = ?", commissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Commission{}, domain.ErrNotFound
		}
		return domain.Commission{}, err
	}
	return toDomainCommission(m), nil
}

func (r *commissionRepository) GetByOrderID(ctx context.Context, orderID string) (domain.Commission, error) {
	var m commissionModel
	if err := r.db.WithContext(ctx).First(&m, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Commission{}, domain.ErrNotFound
		}
		return domain.Commission{}, err
	}
	return toDomainCommission(m), nil
}

func (r *commissionRepository) List(ctx context.Context, query ports.CommissionQuery) ([]domain.Commission, int, error) {
	base := r.db.WithContext(ctx).Model(&commissionModel{})
	if query.Status != "" {
		base = base.Where("status = ?", string(query.Status))
	}
	if query.AffiliateID != "" {
		base = base.Where("affiliate_id = ?", query.AffiliateID)
	}
	if !query.From.IsZero() {
		base = base.Where("created_at >= ?", query.From)
	}
	if !query.To.IsZero() {
		base = base.Where("created_at < ?", query.To)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []commissionModel
	if err := base.
		Order("created_at DESC").
		Limit(limit).
		Offset(query.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	result := make([]domain.Commission, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainCommission(m))
	}
	return result, int(total), nil
}

func (r *commissionRepository) Update(ctx context.Context, row domain.Commission) error {
	rec := toCommissionModel(row)
	result := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("commission_id = ?", rec.CommissionID).
		Updates(map[string]any{
			"method":                 rec.Method,
			"notes":                  rec.Notes,
			"requires_manual_review": rec.RequiresManualReview,
			"failure_message":        rec.FailureMessage,
			"updated_at":             rec.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Transition is the persisted compare-and-set: the update lands only while
// the stored status still equals expect. Losing the race surfaces as
// domain.ErrConflict, never as a silent double transition.
func (r *commissionRepository) Transition(ctx context.Context, row domain.Commission, expect domain.CommissionStatus) error {
	rec := toCommissionModel(row)
	result := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Where("commission_id = ?", rec.CommissionID).
		Where("status = ?", string(expect)).
		Updates(map[string]any{
			"status":                 rec.Status,
			"method":                 rec.Method,
			"proof_ref":              rec.ProofRef,
			"notes":                  rec.Notes,
			"requires_manual_review": rec.RequiresManualReview,
			"failure_message":        rec.FailureMessage,
			"updated_at":             rec.UpdatedAt,
			"approved_at":            rec.ApprovedAt,
			"paid_at":                rec.PaidAt,
			"cancelled_at":           rec.CancelledAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *commissionRepository) SumByAffiliateAndStatus(ctx context.Context, affiliateID string, status domain.CommissionStatus) (float64, error) {
	var sum *float64
	if err := r.db.WithContext(ctx).
		Model(&commissionModel{}).
		Select("SUM(amount)").
		Where("affiliate_id = ?", affiliateID).
		Where("status = ?", string(status)).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

type payoutAccountRepository struct {
	db *gorm.DB
}

func (r *payoutAccountRepository) Upsert(ctx context.Context, row domain.PayoutAccount) error {
	rec := toPayoutAccountModel(row)
	result := r.db.WithContext(ctx).
		Model(&payoutAccountModel{}).
		Where("affiliate_id = ?", rec.AffiliateID).
		Where("rail = ?", rec.Rail).
		Updates(map[string]any{
			"external_account_id": rec.ExternalAccountID,
			"payouts_enabled":     rec.PayoutsEnabled,
			"first_ready_at":      rec.FirstReadyAt,
			"last_checked_at":     rec.LastCheckedAt,
			"updated_at":          rec.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *payoutAccountRepository) Get(ctx context.Context, affiliateID string, rail domain.RailKind) (domain.PayoutAccount, error) {
	var m payoutAccountModel
	if err := r.db.WithContext(ctx).
		First(&m, "affiliate_id = ? AND rail = ?", affiliateID, string(rail)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PayoutAccount{}, domain.ErrNotFound
		}
		return domain.PayoutAccount{}, err
	}
	return toDomainPayoutAccount(m), nil
}

func (r *payoutAccountRepository) ListByAffiliateID(ctx context.Context, affiliateID string) ([]domain.PayoutAccount, error) {
	var rows []payoutAccountModel
	if err := r.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("rail ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.PayoutAccount, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainPayoutAccount(m))
	}
	return result, nil
}

type payoutAttemptRepository struct {
	db *gorm.DB
}

func (r *payoutAttemptRepository) Append(ctx context.Context, row domain.PayoutAttempt) error {
	rec := toPayoutAttemptModel(row)
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *payoutAttemptRepository) ListByCommissionID(ctx context.Context, commissionID string) ([]domain.PayoutAttempt, error) {
	var rows []payoutAttemptModel
	if err := r.db.WithContext(ctx).
		Where("commission_id = ?", commissionID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.PayoutAttempt, 0, len(rows))
	for _, m := range rows {
		result = append(result, toDomainPayoutAttempt(m))
	}
	return result, nil
}

func (r *payoutAttemptRepository) HasSuccess(ctx context.Context, commissionID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&payoutAttemptModel{}).
		Where("commission_id = ?", commissionID).
		Where("outcome = ?", string(domain.PayoutOutcomeSuccess)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type idempotencyRepository struct {
	db *gorm.DB
}

func (r *idempotencyRepository) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	var m settlementIdempotencyModel
	if err := r.db.WithContext(ctx).First(&m, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !m.ExpiresAt.After(now) {
		return nil, nil
	}
	rec := &ports.IdempotencyRecord{
		Key:          m.IdempotencyKey,
		RequestHash:  m.RequestHash,
		ResponseCode: m.ResponseCode,
		ExpiresAt:    m.ExpiresAt,
	}
	if m.ResponseBody != nil {
		rec.ResponseBody = []byte(*m.ResponseBody)
	}
	return rec, nil
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	rec := settlementIdempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Status:         "reserved",
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	body := string(responseBody)
	return r.db.WithContext(ctx).
		Model(&settlementIdempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"status":        "completed",
			"response_code": responseCode,
			"response_body": &body,
			"updated_at":    at,
		}).Error
}
