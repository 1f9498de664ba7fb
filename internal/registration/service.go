package registration

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"festreg/internal/catalog"
)

// Coordinator applies registrations across per-event tables and keeps the
// user index and result cache coherent. Writes are serialized under a real
// mutex; the stores themselves provide no transactions, so two processes can
// still race on the same user+event. The tables are the source of truth;
// index and cache updates are advisory and never fail a registration.
type Coordinator struct {
	store    RecordStore
	index    UserIndex
	cache    ResultCache
	catalog  *catalog.Catalog
	notifier Notifier
	admins   map[string]bool

	writeMu sync.Mutex
	now     func() time.Time
}

// Option tweaks coordinator construction.
type Option func(*Coordinator)

// WithNotifier sets the post-write notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the coordinator with its stores and the admin allow-list.
func NewCoordinator(store RecordStore, index UserIndex, cache ResultCache, cat *catalog.Catalog, adminEmails []string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		index:   index,
		cache:   cache,
		catalog: cat,
		admins:  make(map[string]bool, len(adminEmails)),
		now:     time.Now,
	}
	for _, email := range adminEmails {
		if key := catalog.NormalizeEmail(email); key != "" {
			c.admins[key] = true
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAdmin reports whether the email is on the admin allow-list.
func (c *Coordinator) IsAdmin(email string) bool {
	return c.admins[catalog.NormalizeEmail(email)]
}

// Register validates the request and applies it across the requested events.
// Events the user already holds a row for are skipped; if nothing was
// inserted the whole request fails with ErrAllDuplicate.
func (c *Coordinator) Register(ctx context.Context, req Request) (Result, error) {
	email := catalog.NormalizeEmail(req.Email)
	events := dedupeRefs(req.Events)
	if email == "" || len(events) == 0 {
		return Result{}, ErrValidation
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var inserted []Summary
	var skipped []string
	for _, ref := range events {
		evt, err := c.catalog.Resolve(ref.ID, ref.Title)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s", ErrUnresolvedEvent, refName(ref))
		}

		exists, err := c.store.HasRegistration(ctx, evt.Table, email)
		if err != nil {
			return Result{}, fmt.Errorf("check %s: %w", evt.ID, err)
		}

		title := ref.Title
		if title == "" {
			title = evt.Title
		}
		if exists {
			skipped = append(skipped, title)
			skippedTotal.Inc()
			continue
		}

		row := Row{
			Timestamp:  c.now().UTC(),
			FullName:   trimmed(req.FullName),
			Email:      email,
			Phone:      trimmed(req.Phone),
			College:    trimmed(req.College),
			Department: trimmed(req.Department),
			Year:       trimmed(req.Year),
			EventTitle: title,
			EventID:    evt.ID,
		}
		if err := c.store.Append(ctx, evt.Table, row); err != nil {
			return Result{}, fmt.Errorf("append %s: %w", evt.ID, err)
		}
		insertedTotal.Inc()
		inserted = append(inserted, Summary{ID: evt.ID, Title: title, Date: eventDate(evt)})
	}

	if len(inserted) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrAllDuplicate, strings.Join(skipped, ", "))
	}

	c.mergeIndex(ctx, email, inserted)
	if err := c.cache.Invalidate(ctx, email); err != nil {
		log.Printf("cache invalidate for %s failed: %v", email, err)
	}
	c.notify(ctx, req, email, inserted)

	msg := fmt.Sprintf("Registration successful for %d event(s).", len(inserted))
	if len(skipped) > 0 {
		msg += fmt.Sprintf(" Skipped %d already-registered event(s).", len(skipped))
	}
	return Result{Message: msg, Inserted: inserted, Skipped: skipped}, nil
}

// Registrations returns the deduplicated registrations for a user. Unless
// forceRefresh is set it serves from the result cache, then the user index;
// the full table scan is the expensive fallback and repopulates both.
func (c *Coordinator) Registrations(ctx context.Context, email string, forceRefresh bool) ([]Summary, error) {
	email = catalog.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}

	if !forceRefresh {
		if cached, err := c.cache.GetUser(ctx, email); err != nil {
			log.Printf("user cache read for %s failed: %v", email, err)
		} else if cached != nil {
			lookupServed.WithLabelValues("cache").Inc()
			return cached, nil
		}

		if indexed, err := c.index.Read(ctx, email); err != nil {
			log.Printf("user index read for %s failed: %v", email, err)
		} else if indexed != nil {
			indexed = dedupeSummaries(indexed)
			if err := c.cache.SetUser(ctx, email, indexed); err != nil {
				log.Printf("user cache write for %s failed: %v", email, err)
			}
			lookupServed.WithLabelValues("index").Inc()
			return indexed, nil
		}
	}

	result, err := c.scanUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := c.index.Write(ctx, email, result); err != nil {
		log.Printf("user index write for %s failed: %v", email, err)
	}
	if err := c.cache.SetUser(ctx, email, result); err != nil {
		log.Printf("user cache write for %s failed: %v", email, err)
	}
	lookupServed.WithLabelValues("scan").Inc()
	return result, nil
}

// AllRegistrations returns every row across all configured tables for an
// allow-listed admin, newest first.
func (c *Coordinator) AllRegistrations(ctx context.Context, adminEmail string, forceRefresh bool) ([]AdminRecord, error) {
	if !c.IsAdmin(adminEmail) {
		return nil, ErrUnauthorized
	}

	if !forceRefresh {
		if cached, err := c.cache.GetAdmin(ctx); err != nil {
			log.Printf("admin cache read failed: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	var records []AdminRecord
	for _, evt := range c.catalog.Events() {
		if evt.Table == "" {
			continue
		}
		rows, err := c.store.Rows(ctx, evt.Table)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", evt.ID, err)
		}
		for _, row := range rows {
			title := row.EventTitle
			if title == "" {
				title = evt.Title
			}
			id := row.EventID
			if id == "" {
				id = evt.ID
			}
			records = append(records, AdminRecord{
				Timestamp:  row.Timestamp,
				FullName:   row.FullName,
				Email:      catalog.NormalizeEmail(row.Email),
				Phone:      row.Phone,
				College:    row.College,
				Department: row.Department,
				Year:       row.Year,
				EventTitle: title,
				EventID:    id,
				EventDate:  eventDate(evt),
			})
		}
	}
	adminScans.Inc()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if err := c.cache.SetAdmin(ctx, records); err != nil {
		log.Printf("admin cache write failed: %v", err)
	}
	return records, nil
}

// RebuildIndexes rescans every configured table and rewrites each user's
// index entry from scratch. Returns the number of users reindexed.
func (c *Coordinator) RebuildIndexes(ctx context.Context) (int, error) {
	byEmail := make(map[string][]Summary)
	var order []string
	for _, evt := range c.catalog.Events() {
		if evt.Table == "" {
			continue
		}
		rows, err := c.store.Rows(ctx, evt.Table)
		if err != nil {
			return 0, fmt.Errorf("scan %s: %w", evt.ID, err)
		}
		for _, row := range rows {
			email := catalog.NormalizeEmail(row.Email)
			if email == "" {
				continue
			}
			if _, ok := byEmail[email]; !ok {
				order = append(order, email)
			}
			title := row.EventTitle
			if title == "" {
				title = evt.Title
			}
			id := row.EventID
			if id == "" {
				id = evt.ID
			}
			byEmail[email] = append(byEmail[email], Summary{ID: id, Title: title, Date: eventDate(evt)})
		}
	}

	for _, email := range order {
		if err := c.index.Write(ctx, email, dedupeSummaries(byEmail[email])); err != nil {
			return 0, fmt.Errorf("index write for %s: %w", email, err)
		}
	}
	return len(order), nil
}

// scanUser collects one summary per table holding a row for email.
func (c *Coordinator) scanUser(ctx context.Context, email string) ([]Summary, error) {
	var found []Summary
	for _, evt := range c.catalog.Events() {
		if evt.Table == "" {
			continue
		}
		row, err := c.store.FirstMatch(ctx, evt.Table, email)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", evt.ID, err)
		}
		if row == nil {
			continue
		}
		title := row.EventTitle
		if title == "" {
			title = evt.Title
		}
		id := row.EventID
		if id == "" {
			id = evt.ID
		}
		found = append(found, Summary{ID: id, Title: title, Date: eventDate(evt)})
	}
	return dedupeSummaries(found), nil
}

// mergeIndex appends newly inserted events to the user's index entry and
// re-dedupes. Failures are logged, never surfaced.
func (c *Coordinator) mergeIndex(ctx context.Context, email string, inserted []Summary) {
	existing, err := c.index.Read(ctx, email)
	if err != nil {
		log.Printf("user index read for %s failed: %v", email, err)
		existing = nil
	}
	merged := dedupeSummaries(append(existing, inserted...))
	if err := c.index.Write(ctx, email, merged); err != nil {
		log.Printf("user index write for %s failed: %v", email, err)
	}
}

func (c *Coordinator) notify(ctx context.Context, req Request, email string, inserted []Summary) {
	if c.notifier == nil {
		return
	}
	note := Notification{Email: email, FullName: trimmed(req.FullName), Events: inserted}
	if err := c.notifier.RegistrationConfirmed(ctx, note); err != nil {
		log.Printf("confirmation notify for %s failed: %v", email, err)
	}
}

func eventDate(evt *catalog.Event) string {
	if evt.Date != "" {
		return evt.Date
	}
	return catalog.DefaultDateLabel
}

func refName(ref EventRef) string {
	if ref.Title != "" {
		return ref.Title
	}
	if ref.ID != "" {
		return ref.ID
	}
	return "unknown"
}

func trimmed(s string) string { return strings.TrimSpace(s) }
