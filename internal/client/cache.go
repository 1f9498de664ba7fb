package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"festreg/internal/catalog"
	"festreg/internal/registration"
)

type cacheEntry struct {
	payload []registration.Summary
	expires time.Time
}

// QueryCache wraps Client.Registrations with a TTL cache, in-flight request
// coalescing, and a stale-on-error fallback. Repeated non-forced calls within
// the TTL return the identical cached payload and issue at most one network
// request per user.
type QueryCache struct {
	api *Client
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
	now     func() time.Time
}

// NewQueryCache creates a query cache over the API client.
func NewQueryCache(api *Client, ttl time.Duration) *QueryCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &QueryCache{
		api:     api,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Registrations returns the user's registrations, serving from cache when
// fresh. Concurrent non-forced callers for the same user share a single
// network request. forceRefresh bypasses both the cache and the coalescing
// and repopulates the cache on success.
func (q *QueryCache) Registrations(ctx context.Context, email string, forceRefresh bool) ([]registration.Summary, error) {
	key := catalog.NormalizeEmail(email)

	if forceRefresh {
		data, err := q.api.Registrations(ctx, key, true)
		if err != nil {
			return nil, err
		}
		q.store(key, data)
		return data, nil
	}

	if payload, ok := q.fresh(key); ok {
		return payload, nil
	}

	v, err, _ := q.group.Do(key, func() (interface{}, error) {
		return q.api.Registrations(ctx, key, false)
	})
	if err != nil {
		// Network failure: a stale entry beats no answer.
		if stale, ok := q.stale(key); ok {
			return stale, nil
		}
		return nil, err
	}

	data := v.([]registration.Summary)
	q.store(key, data)
	return data, nil
}

// Invalidate drops the cached entry for a user.
func (q *QueryCache) Invalidate(email string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, catalog.NormalizeEmail(email))
}

func (q *QueryCache) fresh(key string) ([]registration.Summary, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[key]
	if !ok || q.now().After(entry.expires) {
		return nil, false
	}
	return entry.payload, true
}

// stale ignores the TTL: any previously cached payload qualifies.
func (q *QueryCache) stale(key string) ([]registration.Summary, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.entries[key]
	if !ok {
		return nil, false
	}
	return entry.payload, true
}

func (q *QueryCache) store(key string, payload []registration.Summary) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[key] = cacheEntry{payload: payload, expires: q.now().Add(q.ttl)}
}
