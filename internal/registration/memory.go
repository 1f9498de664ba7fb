package registration

import (
	"context"
	"sync"
	"time"

	"festreg/internal/catalog"
)

// MemoryStore is a map-backed RecordStore for dev and testing, mirroring the
// shape of the real per-event tables.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]Row)}
}

// HasRegistration reports whether a row for email exists in the table.
func (s *MemoryStore) HasRegistration(_ context.Context, table, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := catalog.NormalizeEmail(email)
	for _, row := range s.tables[table] {
		if catalog.NormalizeEmail(row.Email) == key {
			return true, nil
		}
	}
	return false, nil
}

// Append adds a row to the table.
func (s *MemoryStore) Append(_ context.Context, table string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], row)
	return nil
}

// FirstMatch returns the first row for email in the table, or nil.
func (s *MemoryStore) FirstMatch(_ context.Context, table, email string) (*Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := catalog.NormalizeEmail(email)
	for _, row := range s.tables[table] {
		if catalog.NormalizeEmail(row.Email) == key {
			match := row
			return &match, nil
		}
	}
	return nil, nil
}

// Rows returns a copy of every row in the table.
func (s *MemoryStore) Rows(_ context.Context, table string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.tables[table]
	out := make([]Row, len(rows))
	copy(out, rows)
	return out, nil
}

// MemoryIndex is a map-backed UserIndex.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string][]Summary
}

// NewMemoryIndex creates an empty in-memory user index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string][]Summary)}
}

// Read returns the indexed entries for email, or nil when absent.
func (i *MemoryIndex) Read(_ context.Context, email string) ([]Summary, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	entries, ok := i.entries[catalog.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	out := make([]Summary, len(entries))
	copy(out, entries)
	return out, nil
}

// Write replaces the indexed entries for email.
func (i *MemoryIndex) Write(_ context.Context, email string, entries []Summary) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	stored := make([]Summary, len(entries))
	copy(stored, entries)
	i.entries[catalog.NormalizeEmail(email)] = stored
	return nil
}

type memoryCacheEntry struct {
	user    []Summary
	admin   []AdminRecord
	expires time.Time
}

// MemoryCache is a map-backed ResultCache with TTL expiry.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

const memoryAdminKey = "admin_all_registrations"

// NewMemoryCache creates an in-memory result cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryCacheEntry), now: time.Now}
}

func (c *MemoryCache) get(key string) (memoryCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return memoryCacheEntry{}, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return memoryCacheEntry{}, false
	}
	return entry, true
}

// GetUser returns the cached per-user result, or nil on miss.
func (c *MemoryCache) GetUser(_ context.Context, email string) ([]Summary, error) {
	entry, ok := c.get("user_registrations:" + catalog.NormalizeEmail(email))
	if !ok {
		return nil, nil
	}
	return entry.user, nil
}

// SetUser stores the per-user result.
func (c *MemoryCache) SetUser(_ context.Context, email string, entries []Summary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]Summary, len(entries))
	copy(stored, entries)
	c.entries["user_registrations:"+catalog.NormalizeEmail(email)] = memoryCacheEntry{user: stored, expires: c.now().Add(c.ttl)}
	return nil
}

// GetAdmin returns the cached admin snapshot, or nil on miss.
func (c *MemoryCache) GetAdmin(_ context.Context) ([]AdminRecord, error) {
	entry, ok := c.get(memoryAdminKey)
	if !ok {
		return nil, nil
	}
	return entry.admin, nil
}

// SetAdmin stores the admin snapshot.
func (c *MemoryCache) SetAdmin(_ context.Context, records []AdminRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]AdminRecord, len(records))
	copy(stored, records)
	c.entries[memoryAdminKey] = memoryCacheEntry{admin: stored, expires: c.now().Add(c.ttl)}
	return nil
}

// Invalidate drops the user entry and the admin snapshot.
func (c *MemoryCache) Invalidate(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, "user_registrations:"+catalog.NormalizeEmail(email))
	delete(c.entries, memoryAdminKey)
	return nil
}
