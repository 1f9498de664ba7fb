package registration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festreg/internal/catalog"
)

var testAdmins = []string{"admin@fest.test"}

type capturedNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *capturedNotifier) RegistrationConfirmed(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *MemoryStore, *MemoryIndex, *MemoryCache) {
	t.Helper()
	store := NewMemoryStore()
	index := NewMemoryIndex()
	cache := NewMemoryCache(30 * time.Minute)
	coord := NewCoordinator(store, index, cache, catalog.Default(), testAdmins, opts...)
	return coord, store, index, cache
}

func request(email string, titles ...string) Request {
	req := Request{
		Email:      email,
		FullName:   "Test Student",
		Phone:      "9876543210",
		College:    "JCET",
		Department: "CSE",
		Year:       "3rd",
	}
	for _, title := range titles {
		req.Events = append(req.Events, EventRef{Title: title})
	}
	return req
}

func TestRegisterInsertsOneRowPerEvent(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	result, err := coord.Register(ctx, request("a@x.com", "Art Gallery", "Game Zone"))
	require.NoError(t, err)
	assert.Equal(t, "Registration successful for 2 event(s).", result.Message)
	assert.Len(t, result.Inserted, 2)
	assert.Empty(t, result.Skipped)

	for _, table := range []string{"registrations_e7", "registrations_e9"} {
		rows, err := store.Rows(ctx, table)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a@x.com", rows[0].Email)
	}
}

func TestRegisterDuplicateIsSkippedNotDuplicated(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery"))
	require.NoError(t, err)

	_, err = coord.Register(ctx, request("a@x.com", "Art Gallery"))
	require.ErrorIs(t, err, ErrAllDuplicate)

	rows, err := store.Rows(ctx, "registrations_e7")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRegisterPartialSuccessMessage(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery", "Game Zone"))
	require.NoError(t, err)

	result, err := coord.Register(ctx, request("a@x.com", "Art Gallery", "Meme Challenge"))
	require.NoError(t, err)
	assert.Equal(t, "Registration successful for 1 event(s). Skipped 1 already-registered event(s).", result.Message)
	assert.Equal(t, []string{"Art Gallery"}, result.Skipped)
}

func TestRegisterValidation(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("", "Art Gallery"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = coord.Register(ctx, request("a@x.com"))
	assert.ErrorIs(t, err, ErrValidation)

	// Entries with neither id nor title are dropped before validation.
	_, err = coord.Register(ctx, Request{Email: "a@x.com", Events: []EventRef{{}, {}}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegisterUnresolvedEventAbortsRequest(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "No Such Event"))
	require.ErrorIs(t, err, ErrUnresolvedEvent)
	assert.Contains(t, err.Error(), "No Such Event")

	rows, err := store.Rows(ctx, "registrations_e7")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRegisterDedupesRequestedEvents(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	req := request("a@x.com", "Art Gallery", "art gallery!")
	req.Events = append(req.Events, EventRef{ID: "e7"})
	result, err := coord.Register(ctx, req)
	require.NoError(t, err)

	// The two title spellings collapse; the bare id is a distinct dedup key
	// but lands on the same table and is skipped there.
	rows, err := store.Rows(ctx, "registrations_e7")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Contains(t, result.Message, "Registration successful for 1 event(s).")
}

func TestIndexStaysDedupeConsistent(t *testing.T) {
	coord, _, index, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery", "Game Zone"))
	require.NoError(t, err)
	_, err = coord.Register(ctx, request("a@x.com", "Meme Challenge"))
	require.NoError(t, err)

	entries, err := index.Read(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	seen := map[string]bool{}
	for _, e := range entries {
		key := e.ID + "|" + catalog.NormalizeKey(e.Title)
		assert.False(t, seen[key], "duplicate index key %s", key)
		seen[key] = true
	}
}

func TestRegisterNotifiesInsertedEventsOnly(t *testing.T) {
	notifier := &capturedNotifier{}
	coord, _, _, _ := newTestCoordinator(t, WithNotifier(notifier))
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery"))
	require.NoError(t, err)
	_, err = coord.Register(ctx, request("a@x.com", "Art Gallery", "Game Zone"))
	require.NoError(t, err)

	require.Len(t, notifier.notes, 2)
	assert.Equal(t, "a@x.com", notifier.notes[0].Email)
	require.Len(t, notifier.notes[1].Events, 1)
	assert.Equal(t, "Game Zone", notifier.notes[1].Events[0].Title)
}

func TestLookupPrefersCacheThenIndexThenScan(t *testing.T) {
	coord, store, index, cache := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery"))
	require.NoError(t, err)

	// Registration merged the index and invalidated the cache, so the first
	// lookup is served by the index and repopulates the cache.
	got, err := coord.Registrations(ctx, "A@X.com", false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e7", got[0].ID)

	cached, err := cache.GetUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, cached)

	// Poison index and store; a cached read must not notice.
	require.NoError(t, index.Write(ctx, "a@x.com", []Summary{}))
	got, err = coord.Registrations(ctx, "a@x.com", false)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Force refresh bypasses both fast paths and rebuilds from the tables.
	require.NoError(t, store.Append(ctx, "registrations_e9", Row{
		Timestamp: time.Now(), Email: "a@x.com", EventTitle: "Game Zone", EventID: "e9",
	}))
	got, err = coord.Registrations(ctx, "a@x.com", true)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	entries, err := index.Read(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLookupScanSkipsUnconfiguredTables(t *testing.T) {
	cat := catalog.New([]catalog.Event{
		{ID: "e1", Title: "Configured", Date: "March 27, 2026", Table: "registrations_e1"},
		{ID: "e2", Title: "Unconfigured", Date: "March 27, 2026"},
	})
	store := NewMemoryStore()
	coord := NewCoordinator(store, NewMemoryIndex(), NewMemoryCache(time.Minute), cat, testAdmins)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "registrations_e1", Row{Email: "a@x.com", EventID: "e1", EventTitle: "Configured"}))

	got, err := coord.Registrations(ctx, "a@x.com", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
}

func TestLookupRequiresEmail(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	_, err := coord.Registrations(context.Background(), "  ", false)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdminLookupUnauthorized(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	_, err := coord.AllRegistrations(context.Background(), "nobody@x.com", false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAdminLookupSortsNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	coord, _, _, cache := newTestCoordinator(t, WithClock(clock))
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery"))
	require.NoError(t, err)
	_, err = coord.Register(ctx, request("b@x.com", "Art Gallery", "Game Zone"))
	require.NoError(t, err)

	records, err := coord.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i-1].Timestamp.Before(records[i].Timestamp), "records out of order at %d", i)
	}
	assert.Equal(t, "b@x.com", records[0].Email)

	// Snapshot is cached for the next non-forced read.
	cached, err := cache.GetAdmin(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 3)
}

func TestAdminCacheInvalidatedByWrites(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	_, err := coord.Register(ctx, request("a@x.com", "Art Gallery"))
	require.NoError(t, err)

	records, err := coord.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = coord.Register(ctx, request("b@x.com", "Game Zone"))
	require.NoError(t, err)

	records, err = coord.AllRegistrations(ctx, "admin@fest.test", false)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAdminRecordTitleFallsBackToCatalog(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "registrations_e7", Row{
		Timestamp: time.Now().UTC(), Email: "a@x.com",
	}))

	records, err := coord.AllRegistrations(ctx, "admin@fest.test", true)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Art Gallery", records[0].EventTitle)
	assert.Equal(t, "e7", records[0].EventID)
	assert.Equal(t, "March 27, 2026", records[0].EventDate)
}

func TestRebuildIndexes(t *testing.T) {
	coord, store, index, _ := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "registrations_e7", Row{Email: "a@x.com", EventID: "e7", EventTitle: "Art Gallery"}))
	require.NoError(t, store.Append(ctx, "registrations_e9", Row{Email: "a@x.com", EventID: "e9", EventTitle: "Game Zone"}))
	require.NoError(t, store.Append(ctx, "registrations_e9", Row{Email: "b@x.com", EventID: "e9", EventTitle: "Game Zone"}))

	users, err := coord.RebuildIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, users)

	entries, err := index.Read(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConcurrentDuplicateRegistrations(t *testing.T) {
	coord, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()

	const attempts = 50
	var inserted, duplicate, failed int32
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := coord.Register(ctx, request("race@x.com", "Art Gallery"))
			switch {
			case err == nil:
				atomic.AddInt32(&inserted, 1)
			case errors.Is(err, ErrAllDuplicate):
				atomic.AddInt32(&duplicate, 1)
			default:
				atomic.AddInt32(&failed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted)
	assert.Equal(t, int32(attempts-1), duplicate)
	assert.Equal(t, int32(0), failed)

	rows, err := store.Rows(ctx, "registrations_e7")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
