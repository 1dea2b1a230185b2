package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email is empty
	ErrEmptyEmail = errors.New("email cannot be empty")
	// ErrInvalidEmail indicates the email is malformed
	ErrInvalidEmail = errors.New("email address is not valid")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail trims and lower-cases an email address and checks its shape
func ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmptyEmail
	}
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}
