package contact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compresr/journey-gateway/internal/contact"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"a@b.com", true},
		{"first.last@example.co.uk", true},
		{"a@b", false},
		{"a b@c.com", false},
		{"@b.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, contact.ValidateEmail(tt.email))
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		valid bool
	}{
		{"+34666111222", true},
		{"+12", true},
		{"+1", true},
		{"+123456789012345", true},
		{"+", false},
		{"0034666111222", false},
		{"+0123456", false},
		{"+1234567890123456", false},
		{"+34 666 111 222", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.valid, contact.ValidatePhone(tt.phone))
		})
	}
}

func TestContact_Validate(t *testing.T) {
	assert.NoError(t, contact.Contact{Email: "a@b.com", Phone: "+34666111222"}.Validate())

	err := contact.Contact{Email: "a@b.com"}.Validate()
	assert.ErrorIs(t, err, contact.ErrMissing)

	err = contact.Contact{Email: "a@b", Phone: "0034666111222"}.Validate()
	assert.ErrorIs(t, err, contact.ErrInvalidEmail)
	assert.ErrorIs(t, err, contact.ErrInvalidPhone)

	err = contact.Contact{Email: "a@b.com", Phone: "0034666111222"}.Validate()
	assert.NotErrorIs(t, err, contact.ErrInvalidEmail)
	assert.ErrorIs(t, err, contact.ErrInvalidPhone)
}

func TestContact_ValidatePartial(t *testing.T) {
	assert.NoError(t, contact.Contact{}.ValidatePartial())
	assert.NoError(t, contact.Contact{Phone: "+34666111222"}.ValidatePartial())
	assert.ErrorIs(t, contact.Contact{Email: "nope"}.ValidatePartial(), contact.ErrInvalidEmail)
}

func TestContact_NormalizeAndEmpty(t *testing.T) {
	c := contact.Contact{Email: "  a@b.com ", Phone: " +34666111222"}.Normalize()
	assert.Equal(t, "a@b.com", c.Email)
	assert.Equal(t, "+34666111222", c.Phone)
	assert.False(t, c.IsEmpty())
	assert.True(t, contact.Contact{}.IsEmpty())
}
