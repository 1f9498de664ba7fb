package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"festreg/internal/queue"
	"festreg/internal/registration"
)

// Publisher hands confirmations to the queue for the worker to deliver.
type Publisher struct {
	q queue.Queue
}

// NewPublisher wraps a queue as a registration notifier.
func NewPublisher(q queue.Queue) *Publisher {
	return &Publisher{q: q}
}

// RegistrationConfirmed enqueues one confirmation message per registration.
func (p *Publisher) RegistrationConfirmed(ctx context.Context, note registration.Notification) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	body, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return p.q.Publish(ctx, queue.Message{Type: queue.TypeConfirmation, Body: body})
}

// Decode parses a confirmation message body back into a notification.
func Decode(body []byte) (registration.Notification, error) {
	var note registration.Notification
	err := json.Unmarshal(body, &note)
	return note, err
}
