package catalog

import (
	"fmt"
	"strings"
)

// DefaultDateLabel is used when an event carries no date of its own.
const DefaultDateLabel = "March 27-28, 2026"

// Event is a static catalog entry for one fest event. Table names the
// registration table backing the event; an empty Table means the event has no
// store configured yet and is skipped by scans.
type Event struct {
	ID         string
	Title      string
	Category   string
	Date       string
	Time       string
	Venue      string
	Department string
	Table      string
}

// Catalog resolves human-entered event identifiers to canonical entries.
// Every event is reachable under two keys: its id and its normalized title.
type Catalog struct {
	byID    map[string]*Event
	byTitle map[string]*Event
	order   []*Event
}

// New builds a catalog from entries. Later duplicates overwrite earlier keys.
func New(events []Event) *Catalog {
	c := &Catalog{
		byID:    make(map[string]*Event, len(events)),
		byTitle: make(map[string]*Event, len(events)),
	}
	for i := range events {
		evt := &events[i]
		c.byID[strings.ToLower(evt.ID)] = evt
		if key := NormalizeKey(evt.Title); key != "" {
			c.byTitle[key] = evt
		}
		c.order = append(c.order, evt)
	}
	return c
}

// Events returns catalog entries in declaration order.
func (c *Catalog) Events() []*Event {
	return c.order
}

// ByID returns the event for a canonical id, or nil.
func (c *Catalog) ByID(id string) *Event {
	return c.byID[strings.ToLower(strings.TrimSpace(id))]
}

// Resolve maps an id and/or free-form title to a catalog entry with a
// configured table. The id wins when both are present.
func (c *Catalog) Resolve(id, title string) (*Event, error) {
	evt := c.ByID(id)
	if evt == nil && title != "" {
		evt = c.byTitle[NormalizeKey(title)]
	}
	if evt == nil {
		name := strings.TrimSpace(title)
		if name == "" {
			name = strings.TrimSpace(id)
		}
		if name == "" {
			name = "unknown"
		}
		return nil, fmt.Errorf("no table configured for event: %s", name)
	}
	if evt.Table == "" {
		return nil, fmt.Errorf("table not configured for event: %s", evt.ID)
	}
	return evt, nil
}

// NormalizeKey lower-cases and strips everything but letters and digits, the
// form used for title comparison and dedup keys.
func NormalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail trims and lower-cases an email for use as an identity key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Default returns the fest event catalog with one registration table per event.
func Default() *Catalog {
	return New([]Event{
		{ID: "e1", Title: "Project Pitch Day", Category: "Innovation", Date: "March 27, 2026", Time: "10:30 AM", Venue: "Main Auditorium", Department: "General", Table: "registrations_e1"},
		{ID: "e2", Title: "AI Prompt Battle", Category: "AI/Tech", Date: "March 28, 2026", Time: "10:00 AM", Venue: "Lab Complex A", Department: "CSE", Table: "registrations_e2"},
		{ID: "e3", Title: "Melody Mania & Dance Infusion", Category: "Cultural", Date: "March 28, 2026", Time: "05:30 PM", Venue: "Main Stage", Department: "General", Table: "registrations_e3"},
		{ID: "e4", Title: "Cooking Without Fire", Category: "Competition", Date: "March 27, 2026", Time: "11:30 AM", Venue: "ECE Department", Department: "ECE", Table: "registrations_e4"},
		{ID: "e5", Title: "Blind Fold Taste Test", Category: "Fun", Date: "March 27, 2026", Time: "12:30 PM", Venue: "ME Department", Department: "ME", Table: "registrations_e5"},
		{ID: "e6", Title: "Survey Hunt", Category: "Fun", Date: "March 27, 2026", Time: "02:00 PM", Venue: "CVE Department", Department: "CVE", Table: "registrations_e6"},
		{ID: "e7", Title: "Art Gallery", Category: "Cultural", Date: "March 27, 2026", Time: "10:00 AM", Venue: "Art Block", Department: "General", Table: "registrations_e7"},
		{ID: "e8", Title: "Spot Acting Battle", Category: "Cultural", Date: "March 27, 2026", Time: "03:00 PM", Venue: "Seminar Hall", Department: "General", Table: "registrations_e8"},
		{ID: "e9", Title: "Game Zone", Category: "Fun", Date: "March 27, 2026", Time: "11:00 AM", Venue: "Lab Complex B", Department: "CSE", Table: "registrations_e9"},
		{ID: "e10", Title: "Tallest Tower Challenge", Category: "Competition", Date: "March 28, 2026", Time: "11:00 AM", Venue: "CVE Department", Department: "CVE", Table: "registrations_e10"},
		{ID: "e11", Title: "Cinematic Campus Video", Category: "Creative", Date: "March 28, 2026", Time: "12:00 PM", Venue: "Media Room", Department: "General", Table: "registrations_e11"},
		{ID: "e12", Title: "Meme Challenge", Category: "Fun", Date: "March 28, 2026", Time: "01:00 PM", Venue: "Lab Complex A", Department: "General", Table: "registrations_e12"},
		{ID: "e13", Title: "Laugh Logic Loot", Category: "Fun", Date: "March 28, 2026", Time: "02:00 PM", Venue: "Seminar Hall", Department: "General", Table: "registrations_e13"},
		{ID: "e14", Title: "Dialogue Delivery Battle", Category: "Cultural", Date: "March 28, 2026", Time: "03:00 PM", Venue: "Main Stage", Department: "General", Table: "registrations_e14"},
		{ID: "e15", Title: "Minute Master", Category: "Competition", Date: "March 28, 2026", Time: "04:00 PM", Venue: "Main Auditorium", Department: "General", Table: "registrations_e15"},
	})
}
