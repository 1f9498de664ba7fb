package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"festreg/internal/catalog"
	"festreg/internal/registration"
)

const (
	userIndexPrefix = "user_index:"
	userCachePrefix = "user_registrations:"
	adminCacheKey   = "admin_all_registrations"
)

// RedisIndex keeps the per-user registration index as persistent JSON keys.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex creates an index over an open redis connection.
func NewRedisIndex(r *Redis) *RedisIndex {
	return &RedisIndex{client: r.Client}
}

// Read returns the indexed entries for email, or nil when absent.
func (i *RedisIndex) Read(ctx context.Context, email string) ([]registration.Summary, error) {
	raw, err := i.client.Get(ctx, userIndexPrefix+catalog.NormalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []registration.Summary
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []registration.Summary{}
	}
	return entries, nil
}

// Write replaces the indexed entries for email. Index keys carry no TTL.
func (i *RedisIndex) Write(ctx context.Context, email string, entries []registration.Summary) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, userIndexPrefix+catalog.NormalizeEmail(email), payload, 0).Err()
}

// RedisCache serves computed query results with TTL expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a result cache with the given TTL.
func NewRedisCache(r *Redis, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisCache{client: r.Client, ttl: ttl}
}

// GetUser returns the cached per-user result, or nil on miss.
func (c *RedisCache) GetUser(ctx context.Context, email string) ([]registration.Summary, error) {
	raw, err := c.client.Get(ctx, userCachePrefix+catalog.NormalizeEmail(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []registration.Summary
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []registration.Summary{}
	}
	return entries, nil
}

// SetUser stores the per-user result under the cache TTL.
func (c *RedisCache) SetUser(ctx context.Context, email string, entries []registration.Summary) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userCachePrefix+catalog.NormalizeEmail(email), payload, c.ttl).Err()
}

// GetAdmin returns the cached admin snapshot, or nil on miss.
func (c *RedisCache) GetAdmin(ctx context.Context) ([]registration.AdminRecord, error) {
	raw, err := c.client.Get(ctx, adminCacheKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []registration.AdminRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []registration.AdminRecord{}
	}
	return records, nil
}

// SetAdmin stores the admin snapshot under the cache TTL.
func (c *RedisCache) SetAdmin(ctx context.Context, records []registration.AdminRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, adminCacheKey, payload, c.ttl).Err()
}

// Invalidate drops the user entry and the admin snapshot.
func (c *RedisCache) Invalidate(ctx context.Context, email string) error {
	return c.client.Del(ctx, userCachePrefix+catalog.NormalizeEmail(email), adminCacheKey).Err()
}
