package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/evlasova/batch-auction/internal/domain"
	"github.com/evlasova/batch-auction/internal/port"
)

var _ port.Cache = (*RedisCache)(nil)

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr string, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

func key(id uint64) string { return "auction:" + strconv.FormatUint(id, 10) }

func (c *RedisCache) SetAuction(ctx context.Context, a *domain.AuctionSnapshot) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(a.ID), b, c.ttl).Err()
}

func (c *RedisCache) GetAuction(ctx context.Context, id uint64) (*domain.AuctionSnapshot, error) {
	b, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var a domain.AuctionSnapshot
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id uint64) error {
	return c.client.Del(ctx, key(id)).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
