package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisCache создаёт кеш названий поверх готового клиента Redis.
// Кеш владеет клиентом: Close закрывает и его.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 24 * time.Hour,
	}
}

// RedisCache хранит названия товаров под ключами product:name:<id> с TTL около суток.
type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

// Get читает названия одним MGET. Если не найдено ни одного, возвращает ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	names := make(map[int64]string, len(ids))
	for i, v := range values {
		if s, ok := v.(string); ok {
			names[ids[i]] = s
		}
	}
	if len(names) == 0 {
		return nil, ErrCacheMiss
	}
	return names, nil
}

// Set записывает названия в pipeline. Разброс TTL не даёт ключам истечь одновременно.
func (r *RedisCache) Set(ctx context.Context, names map[int64]string) error {
	if len(names) == 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(60)) * time.Minute
	ttl := r.baseTTL + jitter

	pipe := r.client.Pipeline()
	for id, name := range names {
		pipe.Set(ctx, cacheKey(id), name, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis для health-check.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает клиент Redis.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("product:name:%d", productID)
}
