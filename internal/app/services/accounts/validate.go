package accounts

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/R3E-Network/marketplace_console/internal/errors"
)

const (
	// MaxNameLength bounds account display names.
	MaxNameLength = 30
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
)

// ValidateEmail checks that email is a bare address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.Validation("email is required").WithDetails("field", "email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return errors.Validation("invalid email address").WithDetails("field", "email")
	}
	return nil
}

// ValidateName checks that name is present and at most MaxNameLength characters.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Validation("name is required").WithDetails("field", "name")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.Validation("name must be between 1 and 30 characters").WithDetails("field", "name")
	}
	return nil
}

// ValidatePassword requires MinPasswordLength characters with at least one
// letter and one digit.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errors.Validation("password must be at least 8 characters").WithDetails("field", "password")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return errors.Validation("password must contain letters and numbers").WithDetails("field", "password")
	}
	return nil
}

// Registration is the payload shared by the setup and insert flows.
type Registration struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Validate checks every field, returning the first failure.
func (r Registration) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	return ValidatePassword(r.Password)
}
