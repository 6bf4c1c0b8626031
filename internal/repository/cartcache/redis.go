package cartcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"storefront-client/internal/domain"
)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, profile string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(profile)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get failed")
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, errors.Wrap(err, "unmarshal cart failed")
	}
	return &cart, nil
}

func (r *RedisCache) Set(ctx context.Context, profile string, cart domain.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return errors.Wrap(err, "marshal cart failed")
	}
	if err := r.client.Set(ctx, cacheKey(profile), payload, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set failed")
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, profile string) error {
	if err := r.client.Del(ctx, cacheKey(profile)).Err(); err != nil {
		return errors.Wrap(err, "redis delete failed")
	}
	return nil
}

func cacheKey(profile string) string {
	return fmt.Sprintf("storefront:cart:%s", profile)
}
