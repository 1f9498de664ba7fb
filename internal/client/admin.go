package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"festreg/internal/registration"
)

type adminEnvelope struct {
	Status  string                     `json:"status"`
	Message string                     `json:"message"`
	Error   string                     `json:"error"`
	Data    []registration.AdminRecord `json:"data"`
}

// AllRegistrations fetches the admin aggregate view from the backend.
func (c *Client) AllRegistrations(ctx context.Context, adminEmail string, forceRefresh bool) ([]registration.AdminRecord, error) {
	params := url.Values{}
	params.Set("action", "getAllRegistrations")
	params.Set("adminEmail", adminEmail)
	if forceRefresh {
		params.Set("forceRefresh", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch all registrations: %w", err)
	}
	defer resp.Body.Close()

	var envelope adminEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode all registrations: %w", err)
	}
	if envelope.Status != "success" {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
		if msg == "" {
			msg = "Failed to fetch all registrations."
		}
		return nil, fmt.Errorf("%s", msg)
	}
	if envelope.Data == nil {
		envelope.Data = []registration.AdminRecord{}
	}
	return envelope.Data, nil
}

// AdminCache caches the admin aggregate snapshot. Its TTL is shorter than the
// per-user cache because the admin view spans every table and goes stale with
// any user's write.
type AdminCache struct {
	api *Client
	ttl time.Duration

	mu       sync.Mutex
	snapshot []registration.AdminRecord
	expires  time.Time
	now      func() time.Time
}

// NewAdminCache creates an admin snapshot cache; TTL defaults to 5 minutes.
func NewAdminCache(api *Client, ttl time.Duration) *AdminCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AdminCache{api: api, ttl: ttl, now: time.Now}
}

// AllRegistrations serves the snapshot from cache when fresh; forceRefresh
// always refetches and repopulates on success.
func (a *AdminCache) AllRegistrations(ctx context.Context, adminEmail string, forceRefresh bool) ([]registration.AdminRecord, error) {
	if !forceRefresh {
		a.mu.Lock()
		if a.snapshot != nil && a.now().Before(a.expires) {
			snapshot := a.snapshot
			a.mu.Unlock()
			return snapshot, nil
		}
		a.mu.Unlock()
	}

	data, err := a.api.AllRegistrations(ctx, adminEmail, forceRefresh)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.snapshot = data
	a.expires = a.now().Add(a.ttl)
	a.mu.Unlock()
	return data, nil
}

// Invalidate drops the cached snapshot.
func (a *AdminCache) Invalidate() {
	a.mu.Lock()
	a.snapshot = nil
	a.mu.Unlock()
}
