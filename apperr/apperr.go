// Package apperr defines the error kinds shared by the registry packages.
// Domain packages declare their own sentinels with New so callers can match
// either the specific sentinel or its kind with errors.Is.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation signals malformed or inconsistent input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound signals that a referenced record does not exist or is not visible.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a violated uniqueness invariant.
	ErrConflict = errors.New("conflict")
	// ErrForbidden signals a role mismatch for the requested action.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized signals a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a message tagged with one of the kinds above.
type Error struct {
	kind error
	msg  string
}

// New returns an error of the given kind carrying msg.
func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Validation is shorthand for New(ErrValidation, msg).
func Validation(msg string) *Error {
	return New(ErrValidation, msg)
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the kind of err, or nil when err is not tagged.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Fields collects per-field validation messages.
type Fields map[string]string

func (f Fields) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

func (f Fields) Unwrap() error { return ErrValidation }
