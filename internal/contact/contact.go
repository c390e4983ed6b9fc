// Package contact holds the visitor-supplied contact identifiers.
//
// A Contact lives only in memory for one bootstrap run. It is never
// persisted; logs must go through monitoring.MaskEmail / MaskPhone.
package contact

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMissing indicates a required contact field is empty.
	ErrMissing = errors.New("email and phone are required")

	// ErrInvalidEmail indicates the email does not have a local@domain.tld shape.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidPhone indicates the phone is not in E.164 format.
	ErrInvalidPhone = errors.New("invalid phone format (E.164)")
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+[1-9]\d{0,14}$`)
)

// Contact is the email/phone pair captured from a visitor.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ValidateEmail reports whether email looks like local@domain.tld.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone reports whether phone is E.164: + then 1 to 15 digits, the
// first non-zero.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Normalize trims surrounding whitespace.
func (c Contact) Normalize() Contact {
	return Contact{Email: strings.TrimSpace(c.Email), Phone: strings.TrimSpace(c.Phone)}
}

// IsEmpty reports whether neither field is set.
func (c Contact) IsEmpty() bool {
	return c.Email == "" && c.Phone == ""
}

// Validate requires both fields and checks their formats. All failures are
// joined so callers can report them together.
func (c Contact) Validate() error {
	if c.Email == "" || c.Phone == "" {
		return ErrMissing
	}
	var errs []error
	if !ValidateEmail(c.Email) {
		errs = append(errs, ErrInvalidEmail)
	}
	if !ValidatePhone(c.Phone) {
		errs = append(errs, ErrInvalidPhone)
	}
	return errors.Join(errs...)
}

// ValidatePartial checks only the fields that are set. Used where contact
// data is optional, such as script previews.
func (c Contact) ValidatePartial() error {
	var errs []error
	if c.Email != "" && !ValidateEmail(c.Email) {
		errs = append(errs, ErrInvalidEmail)
	}
	if c.Phone != "" && !ValidatePhone(c.Phone) {
		errs = append(errs, ErrInvalidPhone)
	}
	return errors.Join(errs...)
}
