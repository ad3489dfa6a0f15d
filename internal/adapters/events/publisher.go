package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cartlane/affiliate-settlement-service/internal/contracts"
	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StreamNames fixes the Redis stream topology: domain events and analytics
// events flow on separate streams, dead letters land on their own.
type StreamNames struct {
	Domain    string
	Analytics string
	DLQ       string
}

func DefaultStreamNames() StreamNames {
	return StreamNames{
		Domain:    "settlement.events",
		Analytics: "settlement.analytics",
		DLQ:       "settlement.events.dlq",
	}
}

// RedisStreamPublisher delivers envelopes over Redis streams. Envelopes are
// routed by event class so high-volume click analytics never contend with
// ledger events.
type RedisStreamPublisher struct {
	client  *redis.Client
	streams StreamNames
}

func NewRedisStreamPublisher(client *redis.Client, streams StreamNames) *RedisStreamPublisher {
	if streams.Domain == "" {
		streams = DefaultStreamNames()
	}
	return &RedisStreamPublisher{client: client, streams: streams}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, envelope contracts.EventEnvelope) error {
	if envelope.EventClass == domain.CanonicalEventClassAnalyticsOnly {
		return p.PublishAnalytics(ctx, envelope)
	}
	return p.PublishDomain(ctx, envelope)
}

func (p *RedisStreamPublisher) PublishDomain(ctx context.Context, envelope contracts.EventEnvelope) error {
	return p.add(ctx, p.streams.Domain, envelope)
}

func (p *RedisStreamPublisher) PublishAnalytics(ctx context.Context, envelope contracts.EventEnvelope) error {
	return p.add(ctx, p.streams.Analytics, envelope)
}

func (p *RedisStreamPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal dlq record: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streams.DLQ,
		Values: map[string]any{
			"event_type": record.OriginalEvent.EventType,
			"payload":    raw,
		},
	}).Err()
}

func (p *RedisStreamPublisher) add(ctx context.Context, stream string, envelope contracts.EventEnvelope) error {
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event_type":    envelope.EventType,
			"partition_key": envelope.PartitionKey,
			"payload":       raw,
		},
	}).Err()
}

// LoggingPublisher stands in for the broker in local and test runs.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, envelope contracts.EventEnvelope) error {
	p.logger.InfoContext(ctx, "published event",
		"event_type", envelope.EventType,
		"event_id", envelope.EventID,
		"partition_key", envelope.PartitionKey,
	)
	return nil
}

func (p *LoggingPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	p.logger.ErrorContext(ctx, "event dead lettered",
		"event_type", record.OriginalEvent.EventType,
		"event_id", record.OriginalEvent.EventID,
		"error_summary", record.ErrorSummary,
		"retry_count", record.RetryCount,
	)
	return nil
}
