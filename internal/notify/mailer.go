package notify

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"festreg/internal/registration"
)

const confirmationSubject = "Access Granted: You're Officially In for Vaibhav 2K26"

// Mailer sends registration confirmation email over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates a mailer; returns nil when host is unset so callers can
// treat email as not configured.
func NewMailer(host string, port int, username, password, from string) *Mailer {
	if host == "" {
		return nil
	}
	if from == "" {
		from = username
	}
	return &Mailer{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

// SendConfirmation delivers the fest confirmation for one registration.
func (m *Mailer) SendConfirmation(note registration.Notification) error {
	if note.Email == "" {
		return fmt.Errorf("notification without recipient")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", note.Email)
	msg.SetHeader("Subject", confirmationSubject)
	msg.SetBody("text/plain", ConfirmationBody(note))
	return m.dialer.DialAndSend(msg)
}

// ConfirmationBody renders the plain-text confirmation message.
func ConfirmationBody(note registration.Notification) string {
	lines := []string{
		"Hi " + note.FullName + ",",
		"",
		"Boom. Your registration for Vaibhav 2K26 is confirmed.",
		"",
		"Your Event Lineup:",
	}
	for _, evt := range note.Events {
		lines = append(lines, fmt.Sprintf("- %s (%s)", evt.Title, evt.Date))
	}
	lines = append(lines,
		"Venue: Jain College of Engineering & Technology Hubballi",
		"",
		"Get ready for code, chaos, and competition.",
		"Please bring your college ID card for entry.",
		"",
		"See you at the fest,",
		"Vaibhav 2K26 Team",
	)
	return strings.Join(lines, "\n")
}
