// Package apperr defines the typed error kinds shared by services and the
// HTTP layer. Services return *Error values (or wrap them); handlers map the
// kind to a status code through response.Error.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	// KindInternal covers infrastructure failures (store, hashing, signing).
	KindInternal Kind = iota
	KindNotFound
	// KindUnauthorized is a bad or missing credential.
	KindUnauthorized
	// KindForbidden is an authenticated principal lacking a capability.
	KindForbidden
	// KindGone is a resource that existed but can no longer be used.
	KindGone
	KindConflict
	KindValidation
	// KindTooManyRequests is a throttled caller.
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindGone:
		return "gone"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Error is a classified failure. Reason is a stable machine-readable code,
// Message is for humans.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, and by reason when the target has one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Reason: "not_found", Message: message}
}

func Unauthorized(reason, message string) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Reason: "forbidden", Message: message}
}

func Gone(reason, message string) *Error {
	return &Error{Kind: KindGone, Reason: reason, Message: message}
}

func Conflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

func Validation(reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

// Internal wraps an infrastructure error with context.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: "internal", Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason of the first *Error in err's chain.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
