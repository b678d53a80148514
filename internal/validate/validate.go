// Package validate holds the boundary input policies: everything is checked
// before any storage or hashing work happens.
package validate

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// PasswordMinLength is the minimum accepted password length.
	PasswordMinLength = 8

	usernameMinLength = 3
	usernameMaxLength = 30

	// maxInputLength caps free-text input to keep payloads bounded.
	maxInputLength = 1000
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	angleRe    = regexp.MustCompile(`[<>]`)
)

// Sanitize trims whitespace, strips angle brackets and truncates the input.
func Sanitize(input string) string {
	s := strings.TrimSpace(input)
	s = angleRe.ReplaceAllString(s, "")
	if len(s) > maxInputLength {
		s = s[:maxInputLength]
	}
	return s
}

// Password checks the strength policy: minimum length plus at least one
// uppercase letter, one lowercase letter and one digit. It returns a
// client-safe message when the password is rejected.
func Password(password string) (string, bool) {
	if password == "" {
		return "password is required", false
	}
	if len(password) < PasswordMinLength {
		return "password must be at least 8 characters", false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return "password must contain at least one uppercase letter", false
	}
	if !lower {
		return "password must contain at least one lowercase letter", false
	}
	if !digit {
		return "password must contain at least one digit", false
	}
	return "", true
}

// Username checks the username policy: 3-30 characters, alphanumeric plus
// underscore and hyphen.
func Username(username string) (string, bool) {
	if username == "" {
		return "username is required", false
	}
	if len(username) < usernameMinLength {
		return "username must be at least 3 characters", false
	}
	if len(username) > usernameMaxLength {
		return "username must be at most 30 characters", false
	}
	if !usernameRe.MatchString(username) {
		return "username may only contain letters, digits, _ and -", false
	}
	return "", true
}

// Email reports whether the input has a basic x@y.z shape.
func Email(email string) bool {
	return email != "" && emailRe.MatchString(email)
}
