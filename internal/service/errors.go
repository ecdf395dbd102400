// Package service implements the account and catalog use cases on top of
// the stores, the session service and the authorization gate.
//
// Every error returned to a handler is either an oops error carrying one of
// the codes below or an uncoded internal failure.
package service

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/iliyamo/movie-catalog/internal/auth"
)

// Error codes attached to returned errors.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeConflict       = "CONFLICT"
	CodeAuthentication = "AUTHENTICATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeAuthorization  = "AUTHORIZATION_DENIED"
)

// DeniedError carries the gate decision behind an AUTHORIZATION_DENIED
// error. Its message is the client-facing message of the decision unless
// Message overrides it.
type DeniedError struct {
	Decision auth.Decision
	Message  string
}

func (e *DeniedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Decision.Kind.Message()
}

// ErrorCode extracts the code of err, or "" when err carries none.
func ErrorCode(err error) string {
	o, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code := o.Code(); code != nil {
		return fmt.Sprint(code)
	}
	return ""
}

// Decision returns the gate decision behind err, if any.
func Decision(err error) (auth.Decision, bool) {
	if de, ok := Denied(err); ok {
		return de.Decision, true
	}
	return auth.Decision{}, false
}

// Denied returns the DeniedError wrapped in err, if any.
func Denied(err error) (*DeniedError, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func denied(d auth.Decision) error {
	return deniedWith(d, "")
}

func deniedWith(d auth.Decision, msg string) error {
	return oops.Code(CodeAuthorization).
		With("decision", d.Kind.String()).
		Wrap(&DeniedError{Decision: d, Message: msg})
}

func invalid(err error) error {
	return oops.Code(CodeValidation).Wrap(err)
}

func invalidf(format string, args ...any) error {
	return oops.Code(CodeValidation).Errorf(format, args...)
}

func notFound(msg string) error {
	return oops.Code(CodeNotFound).Errorf("%s", msg)
}
