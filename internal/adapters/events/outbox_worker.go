package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/ports"
	"github.com/google/uuid"
)

// OutboxWorker pulls unpublished outbox records and publishes them.
// This separates transactional writes from broker delivery for reliability.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	dlq        ports.DLQPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

// NewOutboxWorker constructs the outbox publisher loop with sane defaults.
func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	dlq ports.DLQPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		dlq:        dlq,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic outbox publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	published := 0
	failed := 0
	deadLettered := 0
	for _, rec := range records {
		if rec.RetryCount >= w.maxRetries {
			deadLettered++
			w.deadLetter(ctx, rec, "retry threshold reached before publish", now)
			_ = w.outbox.MarkDeadLettered(ctx, rec.RecordID, claimToken, "retry threshold reached before publish", now)
			continue
		}

		if err := w.publisher.Publish(ctx, rec.Envelope); err != nil {
			failed++
			retriesAfterFailure := rec.RetryCount + 1
			if retriesAfterFailure >= w.maxRetries {
				deadLettered++
				w.logger.ErrorContext(ctx, "outbox message moved to dlq",
					"module", "events.outbox_worker",
					"layer", "adapter",
					"operation", "publish_event",
					"outcome", "failure",
					"record_id", rec.RecordID,
					"event_type", rec.Envelope.EventType,
					"retry_count", retriesAfterFailure,
					"error", err,
				)
				w.deadLetter(ctx, rec, err.Error(), now)
				_ = w.outbox.MarkDeadLettered(ctx, rec.RecordID, claimToken, err.Error(), now)
				continue
			}

			w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "publish_event",
				"outcome", "failure",
				"record_id", rec.RecordID,
				"event_type", rec.Envelope.EventType,
				"retry_count", retriesAfterFailure,
				"error", err,
			)
			_ = w.outbox.MarkFailed(ctx, rec.RecordID, claimToken, err.Error(), now)
			continue
		}
		published++
		_ = w.outbox.MarkPublished(ctx, rec.RecordID, claimToken, now)
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}

func (w *OutboxWorker) deadLetter(ctx context.Context, rec ports.OutboxRecord, reason string, now time.Time) {
	if w.dlq == nil {
		return
	}
	record := contracts.DLQRecord{
		OriginalEvent: rec.Envelope,
		ErrorSummary:  reason,
		RetryCount:    rec.RetryCount,
		FirstSeenAt:   rec.CreatedAt,
		LastErrorAt:   now,
		TraceID:       rec.Envelope.TraceID,
	}
	if err := w.dlq.PublishDLQ(ctx, record); err != nil {
		w.logger.ErrorContext(ctx, "dlq publish failed",
			"module", "events.outbox_worker",
			"layer", "adapter",
			"operation", "publish_dlq",
			"outcome", "failure",
			"record_id", rec.RecordID,
			"error", err,
		)
	}
}
