// Package validation holds the credential policy applied on register and
// login: an email format heuristic and the password strength rules.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// emailPattern accepts local@domain where the local part is a dot-separated
// atom sequence or a quoted string, and the domain is either a dotted label
// sequence ending in a TLD of two or more letters or a bracketed IPv4 literal.
// It is a heuristic gate, not an RFC 5322 parser.
var emailPattern = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

const (
	// MinPasswordLen is the minimum number of characters in a password.
	MinPasswordLen = 10

	// PasswordSymbols lists the symbols of which a password needs at least one.
	PasswordSymbols = "!@#?]"
)

// EmailValidator reports whether s looks like an email address.
type EmailValidator func(s string) bool

// ValidationError describes a credential that violates the policy.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidEmail is the default EmailValidator.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	return emailPattern.MatchString(s)
}

// ValidPassword reports whether s satisfies every password rule.
func ValidPassword(s string) bool {
	return passwordViolation(s) == ""
}

// passwordViolation returns the first rule s breaks, or "" when it breaks none.
func passwordViolation(s string) string {
	if utf8.RuneCountInString(s) < MinPasswordLen {
		return fmt.Sprintf("must be at least %d characters long", MinPasswordLen)
	}
	var lower, upper, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	if !lower {
		return "must contain a lowercase letter"
	}
	if !upper {
		return "must contain an uppercase letter"
	}
	if !symbol {
		return "must contain one of " + strings.Join(strings.Split(PasswordSymbols, ""), " ")
	}
	return ""
}

// Policy bundles the email and password checks. The email validator can be
// swapped, for example to accept internal hostnames in development.
type Policy struct {
	Email EmailValidator
}

// NewPolicy returns a Policy using ValidEmail.
func NewPolicy() Policy {
	return Policy{Email: ValidEmail}
}

// Check validates both credentials, email first. It returns a
// *ValidationError describing the first violation.
func (p Policy) Check(email, password string) error {
	validEmail := p.Email
	if validEmail == nil {
		validEmail = ValidEmail
	}
	if !validEmail(email) {
		return &ValidationError{Field: "email", Reason: "is not a valid email address"}
	}
	if reason := passwordViolation(password); reason != "" {
		return &ValidationError{Field: "password", Reason: reason}
	}
	return nil
}
