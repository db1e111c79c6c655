// Package errs carries the error taxonomy of the booking engine. Every
// failure crossing a service boundary is one of three kinds: NotFound for
// missing references, Conflict for business-rule violations against current
// state, and Fatal for infrastructure failures that are reported but never
// rolled back.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindNotFound Kind = iota
	KindConflict
	KindFatal
)

type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return e.Message + ": " + strings.Join(e.Violations, "; ")
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a business-rule rejection. The violations list is surfaced
// verbatim to the caller so a multi-ticket batch can name every offender.
func Conflict(message string, violations ...string) *Error {
	return &Error{Kind: KindConflict, Message: message, Violations: violations}
}

func Fatal(message string, err error) *Error {
	return &Error{Kind: KindFatal, Message: message, Err: err}
}

func kindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsNotFound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindNotFound
}

func IsConflict(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConflict
}

func IsFatal(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindFatal
}

// HTTPStatus maps the taxonomy onto response codes. Unknown errors are
// treated as internal failures.
func HTTPStatus(err error) int {
	switch k, ok := kindOf(err); {
	case ok && k == KindNotFound:
		return http.StatusNotFound
	case ok && k == KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
