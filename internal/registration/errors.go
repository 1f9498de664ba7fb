package registration

import "errors"

// Error classes surfaced by the coordinator. Handlers map these to
// user-facing messages and HTTP status codes.
var (
	// ErrValidation covers missing email or an empty event list.
	ErrValidation = errors.New("email and at least one event are required")
	// ErrUnresolvedEvent means a requested event has no configured table.
	ErrUnresolvedEvent = errors.New("no table configured for event")
	// ErrAllDuplicate means every requested event was already registered.
	ErrAllDuplicate = errors.New("already registered for the selected event(s)")
	// ErrUnauthorized means the admin identity is not allow-listed.
	ErrUnauthorized = errors.New("unauthorized admin access")
)
