package registration

import (
	"context"
	"time"

	"festreg/internal/catalog"
)

// Row is one registration in an event table. Rows are append-only and never
// mutated once written.
type Row struct {
	Timestamp  time.Time `json:"timestamp"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	College    string    `json:"college"`
	Department string    `json:"department"`
	Year       string    `json:"year"`
	EventTitle string    `json:"eventTitle"`
	EventID    string    `json:"eventId"`
}

// Summary is the per-user view of one registration.
type Summary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// AdminRecord is one flattened row in the admin aggregate view.
type AdminRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	College    string    `json:"college"`
	Department string    `json:"department"`
	Year       string    `json:"year"`
	EventTitle string    `json:"eventTitle"`
	EventID    string    `json:"eventId"`
	EventDate  string    `json:"eventDate"`
}

// EventRef identifies a requested event by id, title, or both.
type EventRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Request is one registration submission, possibly spanning several events.
type Request struct {
	Email      string
	FullName   string
	Phone      string
	College    string
	Department string
	Year       string
	Events     []EventRef
}

// Result reports the outcome of a registration submission.
type Result struct {
	Message  string
	Inserted []Summary
	Skipped  []string
}

// Notification is the payload handed to the notifier after a successful write.
type Notification struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	Events   []Summary `json:"events"`
}

// RecordStore is the append-only table store, one table per event.
type RecordStore interface {
	// HasRegistration reports whether the table holds a row for email
	// (case-insensitive exact match on the identity column).
	HasRegistration(ctx context.Context, table, email string) (bool, error)
	// Append writes a new row to the table.
	Append(ctx context.Context, table string, row Row) error
	// FirstMatch returns the first row matching email, or nil.
	FirstMatch(ctx context.Context, table, email string) (*Row, error)
	// Rows returns every row in the table.
	Rows(ctx context.Context, table string) ([]Row, error)
}

// UserIndex maps a normalized email to the user's known registrations. It is a
// cache of record, not source of truth; the RecordStore wins on disagreement.
type UserIndex interface {
	// Read returns the indexed entries for email, or nil when absent.
	Read(ctx context.Context, email string) ([]Summary, error)
	// Write replaces the indexed entries for email.
	Write(ctx context.Context, email string, entries []Summary) error
}

// ResultCache is the short-lived cache of computed query results.
type ResultCache interface {
	// GetUser returns the cached per-user result, or nil on miss.
	GetUser(ctx context.Context, email string) ([]Summary, error)
	// SetUser stores the per-user result under the cache TTL.
	SetUser(ctx context.Context, email string, entries []Summary) error
	// GetAdmin returns the cached admin snapshot, or nil on miss.
	GetAdmin(ctx context.Context) ([]AdminRecord, error)
	// SetAdmin stores the admin snapshot under the cache TTL.
	SetAdmin(ctx context.Context, records []AdminRecord) error
	// Invalidate drops the user entry and the admin snapshot.
	Invalidate(ctx context.Context, email string) error
}

// Notifier delivers a best-effort confirmation after a successful write.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, note Notification) error
}

// dedupeSummaries keeps the first occurrence per id|normalizedTitle key,
// dropping entries with neither id nor title.
func dedupeSummaries(entries []Summary) []Summary {
	seen := make(map[string]bool, len(entries))
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" && e.Title == "" {
			continue
		}
		key := e.ID + "|" + catalog.NormalizeKey(e.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

// dedupeRefs keeps the first occurrence per id|normalizedTitle key, silently
// dropping entries with neither id nor title.
func dedupeRefs(refs []EventRef) []EventRef {
	seen := make(map[string]bool, len(refs))
	out := make([]EventRef, 0, len(refs))
	for _, ref := range refs {
		ref.ID = catalog.NormalizeEmail(ref.ID)
		ref.Title = trimmed(ref.Title)
		if ref.ID == "" && ref.Title == "" {
			continue
		}
		key := ref.ID + "|" + catalog.NormalizeKey(ref.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}
