package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	envelope, err := json.Marshal(record.Envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}
	rec := settlementOutboxModel{
		RecordID:     record.RecordID,
		EventType:    record.Envelope.EventType,
		EventClass:   record.EventClass,
		PartitionKey: record.Envelope.PartitionKey,
		Envelope:     string(envelope),
		CreatedAt:    record.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *outboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var rows []settlementOutboxModel
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subquery := tx.Model(&settlementOutboxModel{}).
			Select("record_id").
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("created_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Model(&settlementOutboxModel{}).
			Where("record_id IN (?)", subquery).
			Updates(map[string]any{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("published_at IS NULL").
			Where("dead_lettered_at IS NULL").
			Order("created_at ASC").
			Find(&rows).Error
	}); err != nil {
		return nil, err
	}

	result := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		item := ports.OutboxRecord{
			RecordID:     row.RecordID,
			EventClass:   row.EventClass,
			CreatedAt:    row.CreatedAt,
			PublishedAt:  row.PublishedAt,
			RetryCount:   row.RetryCount,
			ClaimUntil:   row.ClaimUntil,
			DeadLettered: row.DeadLetteredAt != nil,
		}
		if row.LastError != nil {
			item.LastError = *row.LastError
		}
		if row.ClaimToken != nil {
			item.ClaimToken = *row.ClaimToken
		}
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal([]byte(row.Envelope), &envelope); err != nil {
			return nil, fmt.Errorf("unmarshal outbox envelope %s: %w", row.RecordID, err)
		}
		item.Envelope = envelope
		result = append(result, item)
	}
	return result, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, recordID, claimToken string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&settlementOutboxModel{}).
		Where("record_id = ?", recordID).
		Where("claim_token = ?", claimToken).
		Updates(map[string]any{
			"published_at": at,
			"claim_token":  nil,
			"claim_until":  nil,
		}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, recordID, claimToken, reason string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&settlementOutboxModel{}).
		Where("record_id = ?", recordID).
		Where("claim_token = ?", claimToken).
		Updates(map[string]any{
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    reason,
			"last_error_at": at,
			"claim_token":   nil,
			"claim_until":   nil,
		}).Error
}

func (r *outboxRepository) MarkDeadLettered(ctx context.Context, recordID, claimToken, reason string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&settlementOutboxModel{}).
		Where("record_id = ?", recordID).
		Where("claim_token = ?", claimToken).
		Updates(map[string]any{
			"retry_count":      gorm.Expr("retry_count + 1"),
			"last_error":       reason,
			"last_error_at":    at,
			"dead_lettered_at": at,
			"claim_token":      nil,
			"claim_until":      nil,
		}).Error
}
