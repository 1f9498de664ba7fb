package client

import (
	"errors"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	nonDigits    = regexp.MustCompile(`\D`)
)

// ValidateForm runs the pre-submission checks: required personal fields, a
// plausible email, a 10-digit phone, and at least one selected event. It
// rejects before any network call is made.
func ValidateForm(form Form) error {
	if strings.TrimSpace(form.FullName) == "" ||
		strings.TrimSpace(form.Email) == "" ||
		strings.TrimSpace(form.Phone) == "" ||
		strings.TrimSpace(form.College) == "" ||
		strings.TrimSpace(form.Department) == "" ||
		len(form.SelectedEvents) == 0 {
		return errors.New("Please fill in all required fields and select at least one event.")
	}
	if !emailPattern.MatchString(form.Email) {
		return errors.New("Please enter a valid email address.")
	}
	if !phonePattern.MatchString(nonDigits.ReplaceAllString(form.Phone, "")) {
		return errors.New("Please enter a valid 10-digit phone number.")
	}
	return nil
}
