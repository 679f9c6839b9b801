package output

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Error is what every command failure becomes before rendering. Code
// selects the exit status; Hint tells the user what to do next.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Cause      error

	// Fields holds per-field validation messages from a 400 response.
	Fields map[string][]string
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps Code to the process exit status.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// IsUnauthorized reports whether the error came from a 401 response.
func (e *Error) IsUnauthorized() bool {
	return e.HTTPStatus == http.StatusUnauthorized
}

const loginHint = "Run: slotbook auth login"

func newErr(code string, status int, msg, hint string) *Error {
	return &Error{Code: code, HTTPStatus: status, Message: msg, Hint: hint}
}

func ErrUsage(msg string) *Error { return newErr(CodeUsage, 0, msg, "") }

func ErrUsageHint(msg, hint string) *Error { return newErr(CodeUsage, 0, msg, hint) }

// ErrNotFound names the missing resource and the identifier the user gave.
func ErrNotFound(resource, identifier string) *Error {
	return ErrNotFoundHint(resource, identifier, "")
}

func ErrNotFoundHint(resource, identifier, hint string) *Error {
	return newErr(CodeNotFound, http.StatusNotFound, resource+" not found: "+identifier, hint)
}

// ErrAmbiguous reports a name that matched several records. Up to five
// candidates are listed in the hint.
func ErrAmbiguous(resource string, matches []string) *Error {
	hint := "Be more specific or pass the ID"
	if n := len(matches); n > 0 && n <= 5 {
		hint = "Did you mean: " + strings.Join(matches, ", ")
	}
	return newErr(CodeAmbiguous, 0, "Ambiguous "+resource, hint)
}

// ErrAuth reports a missing or unusable local session; no request was made.
func ErrAuth(msg string) *Error { return newErr(CodeAuth, 0, msg, loginHint) }

// ErrUnauthorized wraps a 401 from the API.
func ErrUnauthorized(msg string) *Error {
	return newErr(CodeAuth, http.StatusUnauthorized, cmp.Or(msg, "Authentication failed"), loginHint)
}

func ErrForbidden(msg string) *Error { return newErr(CodeForbidden, http.StatusForbidden, msg, "") }

func ErrConflict(msg string) *Error { return newErr(CodeConflict, http.StatusConflict, msg, "") }

// ErrRateLimit carries the server's Retry-After seconds in the hint when
// known.
func ErrRateLimit(retryAfter int) *Error {
	hint := "Try again later"
	if retryAfter > 0 {
		hint = fmt.Sprintf("Try again in %d seconds", retryAfter)
	}
	e := newErr(CodeRateLimit, http.StatusTooManyRequests, "Rate limited", hint)
	e.Retryable = true
	return e
}

// ErrNetwork wraps a transport failure; no HTTP status was received.
func ErrNetwork(cause error) *Error {
	e := newErr(CodeNetwork, 0, "Network error", cause.Error())
	e.Retryable, e.Cause = true, cause
	return e
}

// ErrAPI is any other non-2xx response. 5xx responses are retryable.
func ErrAPI(status int, msg string) *Error {
	e := newErr(CodeAPI, status, msg, "")
	e.Retryable = status >= http.StatusInternalServerError
	return e
}

// ErrValidation builds a 400 error from DRF-style field errors
// ({"field": ["message", ...]}).
func ErrValidation(fields map[string][]string) *Error {
	var parts []string
	for _, field := range slices.Sorted(maps.Keys(fields)) {
		msg := strings.Join(fields[field], " ")
		switch field {
		case "non_field_errors", "detail":
			parts = append(parts, msg)
		default:
			parts = append(parts, field+": "+msg)
		}
	}
	e := newErr(CodeValidation, http.StatusBadRequest, "Validation failed", strings.Join(parts, "; "))
	e.Fields = fields
	return e
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	e = newErr(CodeAPI, 0, err.Error(), "")
	e.Cause = err
	return e
}

// IsUnauthorized reports whether err is (or wraps) a 401 response error.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsUnauthorized()
}
