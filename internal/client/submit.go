package client

import (
	"context"
	"fmt"
	"sync"

	"festreg/internal/registration"
)

// Service bundles the API client with its query cache for browser-equivalent
// callers.
type Service struct {
	api   *Client
	cache *QueryCache
}

// NewService wires the submission flow with the query cache it invalidates.
func NewService(api *Client, cache *QueryCache) *Service {
	return &Service{api: api, cache: cache}
}

// Registrations serves the user's registrations through the query cache.
func (s *Service) Registrations(ctx context.Context, email string, forceRefresh bool) ([]registration.Summary, error) {
	return s.cache.Registrations(ctx, email, forceRefresh)
}

// Submit fans one form out into an independent registration call per selected
// event, in parallel, and aggregates the outcomes. Sibling failures never
// abort each other; the query cache is invalidated as soon as any call
// succeeds.
func (s *Service) Submit(ctx context.Context, form Form) Response {
	if err := ValidateForm(form); err != nil {
		return Response{Status: "error", Message: err.Error()}
	}

	titles := uniqueTitles(form.SelectedEvents)
	if len(titles) == 0 {
		return Response{Status: "error", Message: "Please select at least one event."}
	}

	results := make([]Response, len(titles))
	var wg sync.WaitGroup
	for i, title := range titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			results[i] = s.api.RegisterEvent(ctx, form, title)
		}(i, title)
	}
	wg.Wait()

	var failed []Response
	for _, r := range results {
		if r.Status != "success" {
			failed = append(failed, r)
		}
	}
	succeeded := len(results) - len(failed)

	if succeeded > 0 && s.cache != nil {
		s.cache.Invalidate(form.Email)
	}

	switch {
	case len(failed) == 0:
		if len(results) == 1 {
			msg := results[0].Message
			if msg == "" {
				msg = "Registration successful!"
			}
			return Response{Status: "success", Message: msg}
		}
		return Response{Status: "success", Message: fmt.Sprintf("Registration successful for %d events.", len(results))}
	case succeeded > 0:
		return Response{Status: "error", Message: fmt.Sprintf("Registered for %d/%d events. %s", succeeded, len(results), failed[0].Message)}
	default:
		msg := failed[0].Message
		if msg == "" {
			msg = "Registration failed."
		}
		return Response{Status: "error", Message: msg}
	}
}

// uniqueTitles drops blank and duplicate selections, preserving order.
func uniqueTitles(titles []string) []string {
	seen := make(map[string]bool, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
