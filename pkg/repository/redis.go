package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrCacheMiss is returned when a cached entry does not exist.
var ErrCacheMiss = errors.New("cache miss")

const orderCacheTTL = 30 * time.Minute

type RedisRepository struct {
	client *redis.Client
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}))
}

func NewRedisRepositoryFromClient(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// releaseScript deletes a lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock sets key if it is absent and returns the owner token needed
// to release it. The token is empty when another holder owns the key.
func (r *RedisRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock drops the lock if token still owns it. A lock that expired
// and was taken by someone else is left alone.
func (r *RedisRepository) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{lockKey(key)}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release lock failed: %w", err)
	}
	return nil
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// OrderCache is the cached view of a paid order.
type OrderCache struct {
	OrderNumber   string `json:"order_number"`
	UserID        string `json:"user_id"`
	TotalAmount   int64  `json:"total_amount"`
	PaymentStatus string `json:"payment_status"`
}

func (r *RedisRepository) CacheOrder(ctx context.Context, order *OrderCache) error {
	return r.SetJSON(ctx, orderKey(order.OrderNumber), order, orderCacheTTL)
}

func (r *RedisRepository) GetOrderCache(ctx context.Context, orderNumber string) (*OrderCache, error) {
	var order OrderCache
	if err := r.GetJSON(ctx, orderKey(orderNumber), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *RedisRepository) InvalidateOrder(ctx context.Context, orderNumber string) error {
	return r.Del(ctx, orderKey(orderNumber))
}

func orderKey(orderNumber string) string {
	return fmt.Sprintf("order:%s", orderNumber)
}
