package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festreg/internal/catalog"
	"festreg/internal/registration"
)

func testForm(titles ...string) Form {
	return Form{
		Email:          "a@x.com",
		FullName:       "A",
		Phone:          "9876543210",
		College:        "JCET",
		Department:     "CSE",
		Year:           "3rd",
		SelectedEvents: titles,
	}
}

func lookupServer(t *testing.T, calls *int32, data []registration.Summary) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": data})
	}))
}

func TestQueryCacheCoalescesConcurrentLookups(t *testing.T) {
	var calls int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-gate
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": []registration.Summary{{ID: "e7", Title: "Art Gallery"}}})
	}))
	defer srv.Close()

	cache := NewQueryCache(New(srv.URL, catalog.Default()), time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]registration.Summary, callers)
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Registrations(context.Background(), "a@x.com", false)
		}(i)
	}
	// Let every caller reach the in-flight request before it completes.
	time.Sleep(100 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, "e7", results[i][0].ID)
	}
}

func TestQueryCacheIdempotentWithinTTL(t *testing.T) {
	var calls int32
	srv := lookupServer(t, &calls, []registration.Summary{{ID: "e9", Title: "Game Zone"}})
	defer srv.Close()

	cache := NewQueryCache(New(srv.URL, catalog.Default()), time.Minute)
	ctx := context.Background()

	first, err := cache.Registrations(ctx, "A@X.com ", false)
	require.NoError(t, err)
	second, err := cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, first, second)
}

func TestQueryCacheForceRefreshBypassesCache(t *testing.T) {
	var calls int32
	srv := lookupServer(t, &calls, []registration.Summary{{ID: "e9", Title: "Game Zone"}})
	defer srv.Close()

	cache := NewQueryCache(New(srv.URL, catalog.Default()), time.Minute)
	ctx := context.Background()

	_, err := cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	_, err = cache.Registrations(ctx, "a@x.com", true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls)

	// The forced result repopulated the cache.
	_, err = cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestQueryCacheServesStaleOnNetworkFailure(t *testing.T) {
	var calls int32
	srv := lookupServer(t, &calls, []registration.Summary{{ID: "e7", Title: "Art Gallery"}})

	cache := NewQueryCache(New(srv.URL, catalog.Default()), time.Minute)
	ctx := context.Background()

	got, err := cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Expire the entry, then take the backend away.
	cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	srv.Close()

	got, err = cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e7", got[0].ID)

	// A user with no stale entry still fails.
	_, err = cache.Registrations(ctx, "other@x.com", false)
	assert.Error(t, err)
}

func TestQueryCacheInvalidate(t *testing.T) {
	var calls int32
	srv := lookupServer(t, &calls, nil)
	defer srv.Close()

	cache := NewQueryCache(New(srv.URL, catalog.Default()), time.Minute)
	ctx := context.Background()

	_, err := cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	cache.Invalidate("a@x.com")
	_, err = cache.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls)
}

func TestSubmitAllSucceed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "Registration successful for 1 event(s)."})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	svc := NewService(api, NewQueryCache(api, time.Minute))

	resp := svc.Submit(context.Background(), testForm("Art Gallery", "Game Zone"))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Registration successful for 2 events.", resp.Message)
}

func TestSubmitPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			SelectedEvent string `json:"selectedEvent"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		if payload.SelectedEvent == "Game Zone" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "You are already registered for the selected event(s)."})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "Registration successful for 1 event(s)."})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	svc := NewService(api, NewQueryCache(api, time.Minute))

	resp := svc.Submit(context.Background(), testForm("Art Gallery", "Game Zone"))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "Registered for 1/2 events. Game Zone: You are already registered for the selected event(s).", resp.Message)
}

func TestSubmitAllFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Email and at least one event are required."})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	svc := NewService(api, NewQueryCache(api, time.Minute))

	resp := svc.Submit(context.Background(), testForm("Art Gallery"))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "Art Gallery: Email and at least one event are required.", resp.Message)
}

func TestSubmitDedupesSelectedEvents(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "ok"})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	svc := NewService(api, NewQueryCache(api, time.Minute))

	resp := svc.Submit(context.Background(), testForm("Art Gallery", "Art Gallery"))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, int32(1), calls)
}

func TestSubmitValidatesBeforeNetwork(t *testing.T) {
	api := New("http://127.0.0.1:0", catalog.Default())
	svc := NewService(api, NewQueryCache(api, time.Minute))

	resp := svc.Submit(context.Background(), Form{Email: "a@x.com"})
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, "required fields")

	form := testForm("Art Gallery")
	form.Phone = "12345"
	resp = svc.Submit(context.Background(), form)
	assert.Contains(t, resp.Message, "10-digit phone")

	form = testForm("Art Gallery")
	form.Email = "not-an-email"
	resp = svc.Submit(context.Background(), form)
	assert.Contains(t, resp.Message, "valid email")
}

func TestRegisterEventFireAndForgetFallback(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Kill the first attempt before any response bytes reach the
			// client, forcing the fire-and-forget path.
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	resp := api.RegisterEvent(context.Background(), testForm("Art Gallery"), "Art Gallery")

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, `Registration submitted for "Art Gallery".`, resp.Message)
	assert.Equal(t, int32(2), calls)
}

func TestSubmitInvalidatesQueryCacheOnSuccess(t *testing.T) {
	var lookups int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&lookups, 1)
			json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": []registration.Summary{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "ok"})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	cache := NewQueryCache(api, time.Minute)
	svc := NewService(api, cache)
	ctx := context.Background()

	_, err := svc.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)

	resp := svc.Submit(ctx, testForm("Art Gallery"))
	require.Equal(t, "success", resp.Status)

	_, err = svc.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), lookups)
}

func TestAdminCacheServesSnapshotUntilTTL(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": []registration.AdminRecord{
				{Email: "a@x.com", EventTitle: "Art Gallery"},
			},
		})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	cache := NewAdminCache(api, time.Minute)
	ctx := context.Background()

	first, err := cache.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := cache.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls)

	cache.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = cache.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestAdminCacheForceRefreshBypasses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "getAllRegistrations", r.URL.Query().Get("action"))
		json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": []registration.AdminRecord{}})
	}))
	defer srv.Close()

	api := New(srv.URL, catalog.Default())
	cache := NewAdminCache(api, time.Minute)
	ctx := context.Background()

	_, err := cache.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	_, err = cache.AllRegistrations(ctx, "admin@fest.test", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}
