package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cartlane/affiliate-settlement-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisRailStatusCache holds the last observed rail readiness per affiliate
// and rail. Misses and decode failures fall through to a live status check;
// the persisted payout account row remains the source of truth.
type RedisRailStatusCache struct {
	client *redis.Client
}

func NewRedisRailStatusCache(client *redis.Client) *RedisRailStatusCache {
	return &RedisRailStatusCache{client: client}
}

func railStatusKey(affiliateID string, rail domain.RailKind) string {
	return "settlement:rail_status:" + affiliateID + ":" + string(rail)
}

func (s *RedisRailStatusCache) Get(ctx context.Context, affiliateID string, rail domain.RailKind) (*domain.RailStatus, error) {
	raw, err := s.client.Get(ctx, railStatusKey(affiliateID, rail)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var status domain.RailStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, nil
	}
	return &status, nil
}

func (s *RedisRailStatusCache) Set(ctx context.Context, affiliateID string, rail domain.RailKind, status domain.RailStatus, ttl time.Duration) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return s.client.Set(ctx, railStatusKey(affiliateID, rail), raw, ttl).Err()
}
