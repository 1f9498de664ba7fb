// Package client is the caller-side service layer for the registration API:
// a thin HTTP client, a TTL query cache with in-flight coalescing, and the
// multi-event submission flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"festreg/internal/catalog"
	"festreg/internal/registration"
)

// Form is one registration submission as entered by the user. SelectedEvents
// holds event titles.
type Form struct {
	Email          string   `json:"email"`
	FullName       string   `json:"fullName"`
	Phone          string   `json:"phone"`
	College        string   `json:"college"`
	Department     string   `json:"department"`
	Year           string   `json:"year"`
	SelectedEvents []string `json:"selectedEvents"`
}

// Response mirrors the API's status/message envelope.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client calls the registration backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	catalog *catalog.Catalog
}

// New creates a client with a request timeout. The catalog resolves selected
// titles to canonical ids before submission.
func New(baseURL string, cat *catalog.Catalog) *Client {
	return &Client{
		BaseURL: baseURL,
		catalog: cat,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type apiEnvelope struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Data    []registration.Summary `json:"data"`
}

// Registrations fetches the user's registrations from the backend.
func (c *Client) Registrations(ctx context.Context, email string, forceRefresh bool) ([]registration.Summary, error) {
	params := url.Values{}
	params.Set("action", "getRegistrations")
	params.Set("email", email)
	if forceRefresh {
		params.Set("forceRefresh", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch registrations: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	if envelope.Status != "success" {
		msg := envelope.Message
		if msg == "" {
			msg = envelope.Error
		}
		if msg == "" {
			msg = "Failed to fetch registrations."
		}
		return nil, fmt.Errorf("%s", msg)
	}
	if envelope.Data == nil {
		envelope.Data = []registration.Summary{}
	}
	return envelope.Data, nil
}

// registerPayload is the write-path body, carrying the single-event fallback
// fields alongside selectedEvents for older backend deployments.
type registerPayload struct {
	Form
	Action          string                  `json:"action"`
	SelectedEvent   string                  `json:"selectedEvent"`
	SelectedEventID string                  `json:"selectedEventId"`
	Selected        []registration.EventRef `json:"selectedEvents"`
}

// RegisterEvent submits the form for a single event. When the normal request's
// response cannot be read, it falls back to a fire-and-forget post and assumes
// delivery; the returned message says "submitted", not "successful", for that
// path.
func (c *Client) RegisterEvent(ctx context.Context, form Form, eventTitle string) Response {
	var id string
	if evt := c.catalogByTitle(eventTitle); evt != nil {
		id = evt.ID
	}
	payload := registerPayload{
		Form:            form,
		Action:          "register",
		SelectedEvent:   eventTitle,
		SelectedEventID: id,
		Selected:        []registration.EventRef{{ID: id, Title: eventTitle}},
	}
	payload.Form.SelectedEvents = nil
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{Status: "error", Message: eventTitle + ": " + err.Error()}
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		// The response could not be obtained; send once more without
		// reading the reply and infer delivery.
		if ffErr := c.fireAndForget(ctx, body); ffErr != nil {
			return Response{Status: "error", Message: fmt.Sprintf("%s: %v", eventTitle, ffErr)}
		}
		return Response{Status: "success", Message: fmt.Sprintf("Registration submitted for %q.", eventTitle)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed *Response
	if len(raw) > 0 {
		var r Response
		if json.Unmarshal(raw, &r) == nil {
			parsed = &r
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed == nil {
			return Response{Status: "error", Message: fmt.Sprintf("%s: Registration failed with HTTP %d.", eventTitle, resp.StatusCode)}
		}
	}

	normalized := normalizeResponse(parsed, "Registration failed.")
	if normalized.Status == "error" {
		return Response{Status: "error", Message: eventTitle + ": " + normalized.Message}
	}
	return normalized
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.HTTP.Do(req)
}

func (c *Client) fireAndForget(ctx context.Context, body []byte) error {
	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	// Deliberately unread: delivery is inferred, not confirmed.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func (c *Client) catalogByTitle(title string) *catalog.Event {
	if c.catalog == nil {
		return nil
	}
	evt, err := c.catalog.Resolve("", title)
	if err != nil {
		return nil
	}
	return evt
}

func normalizeResponse(r *Response, defaultError string) Response {
	if r != nil && r.Status == "success" {
		msg := r.Message
		if msg == "" {
			msg = "Registration successful!"
		}
		return Response{Status: "success", Message: msg}
	}
	msg := defaultError
	if r != nil && r.Message != "" {
		msg = r.Message
	}
	return Response{Status: "error", Message: msg}
}
