package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-topic-digest/internal/domain"
	"tg-topic-digest/internal/infra/metrics"
)

// RedisCache реализует domain.DeliveryGuard через SETNX.
type RedisCache struct {
	client *redis.Client
}

var _ domain.DeliveryGuard = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Connect создаёт клиента и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Delivered сообщает, занят ли ключ.
func (c *RedisCache) Delivered(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	n, err := c.client.Exists(ctx, key).Result()
	metrics.ObserveNetworkRequest("redis", "exists", "delivery_guard", start, err)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Once выполняет fn, если ключ ещё не занят. При ошибке fn ключ освобождается.
func (c *RedisCache) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) (bool, error) {
	start := time.Now()
	ok, err := c.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	metrics.ObserveNetworkRequest("redis", "setnx", "delivery_guard", start, err)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := fn(); err != nil {
		_ = c.client.Del(context.WithoutCancel(ctx), key).Err()
		return true, err
	}
	return true, nil
}
