package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sceneswitch/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetBatchProgress(ctx context.Context, batchID uuid.UUID, p BatchProgress, ttl time.Duration) error
	GetBatchProgress(ctx context.Context, batchID uuid.UUID) (BatchProgress, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// BatchProgress is the live view of a running batch, kept in the cache so reads
// do not have to hit the database on every poll.
type BatchProgress struct {
	Phase     models.BatchPhase  `json:"phase"`
	Status    models.BatchStatus `json:"status"`
	Progress  float64            `json:"progress"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) SetBatchProgress(ctx context.Context, batchID uuid.UUID, p BatchProgress, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode batch progress: %w", err)
	}
	return c.client.Set(ctx, BatchProgressKey(batchID), data, ttl).Err()
}

func (c *RedisCache) GetBatchProgress(ctx context.Context, batchID uuid.UUID) (BatchProgress, bool, error) {
	data, found, err := c.Get(ctx, BatchProgressKey(batchID))
	if err != nil || !found {
		return BatchProgress{}, false, err
	}
	var p BatchProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return BatchProgress{}, false, fmt.Errorf("decode batch progress: %w", err)
	}
	return p, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
