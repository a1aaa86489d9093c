// Package validation provides input validation and sanitization helpers.
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// passwordRegex enforces the account password policy: at least 8 characters,
// at least one letter and one digit, drawn from letters, digits and the
// symbol set @$!%*#?&.
var passwordRegex = regexp.MustCompile(`^[A-Za-z\d@$!%*#?&]{8,}$`)

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// ValidatePassword checks a password against the account password policy.
func ValidatePassword(password string) error {
	if !passwordRegex.MatchString(password) {
		return fmt.Errorf("password must be at least 8 characters and may only contain letters, digits and @$!%%*#?&")
	}
	if !strings.ContainsAny(password, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !strings.ContainsAny(password, "0123456789") {
		return fmt.Errorf("password must contain at least one digit")
	}
	return nil
}

// ValidateEmail checks the basic shape of an email address.
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must be at most 254 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	if strings.HasSuffix(email, ".") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// Sanitize strips anything that looks like an HTML/XML tag from free-text
// input and trims surrounding whitespace. The content between tags is kept.
func Sanitize(s string) string {
	return strings.TrimSpace(tagRegex.ReplaceAllString(s, ""))
}
