package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on the class of failure
// (retry policy, HTTP mapping) instead of matching message strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidState
	KindTransient
	KindAdapter
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindTransient:
		return "transient"
	case KindAdapter:
		return "adapter"
	default:
		return "unknown"
	}
}

// Error carries a kind, a short user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func InvalidState(message string) *Error {
	return New(KindInvalidState, message)
}

func Transient(message string, cause error) *Error {
	return Wrap(KindTransient, message, cause)
}

func Adapter(message string, cause error) *Error {
	return Wrap(KindAdapter, message, cause)
}

// KindOf returns the kind of err, unwrapping as needed.
// Plain errors report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the retry controller may re-attempt the call.
// Logic failures and conflicts are terminal for the attempt; conflicts get
// their own refetch-and-reapply path instead of blind retry.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindAdapter:
		return true
	default:
		return false
	}
}

// UserMessage returns the short message intended for end users. Unknown
// errors collapse to a generic message so internals never leak.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong, please try again"
}
