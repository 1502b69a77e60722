package posting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bookkeeping/internal/shared"
)

// ResultCache keeps composed results of posted documents for fast replays.
// A miss is reported as (nil, nil).
type ResultCache interface {
	Get(ctx context.Context, tenantID, transactionID uuid.UUID) (*Result, error)
	Set(ctx context.Context, result *Result) error
}

// RedisCache stores results as JSON in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache instantiates the cache. A nil client disables caching.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get loads a cached result.
func (c *RedisCache) Get(ctx context.Context, tenantID, transactionID uuid.UUID) (*Result, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, shared.PostedResultKey(tenantID, transactionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Set stores a posted result. Drafts are never cached.
func (c *RedisCache) Set(ctx context.Context, result *Result) error {
	if c == nil || c.client == nil || result == nil || !result.Transaction.IsPosted() {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	key := shared.PostedResultKey(result.Transaction.TenantID, result.Transaction.ID)
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
