// Package common holds the error taxonomy shared by the stores, the services
// and the HTTP layer.
package common

import (
	"errors"
	"fmt"
)

// Store-level sentinels. Repositories wrap these with %w.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Kind classifies an error for propagation to the boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindConflict
	KindNotFound
	KindUnauthorized
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "internal"
	}
}

// Error is a classified service error. Message is safe to show to callers;
// Err carries the cause and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Conflict(msg string) *Error     { return &Error{Kind: KindConflict, Message: msg} }
func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func InvalidInput(msg string) *Error { return &Error{Kind: KindInvalidInput, Message: msg} }

// Internal wraps cause behind a generic message.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// KindOf reports the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
