// Package apperr defines the error kinds surfaced by the lending core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, caller-facing classification of a failure.
type Kind string

const (
	KindOutOfStock         Kind = "OUT_OF_STOCK"
	KindInvalidDateRange   Kind = "INVALID_DATE_RANGE"
	KindInvalidPricing     Kind = "INVALID_PRICING"
	KindAlreadyReturned    Kind = "ALREADY_RETURNED"
	KindNotFound           Kind = "NOT_FOUND"
	KindGatewayUnavailable Kind = "GATEWAY_UNAVAILABLE"
	KindForbidden          Kind = "FORBIDDEN"
	KindStorageConflict    Kind = "STORAGE_CONFLICT"
	KindNotYetPaid         Kind = "NOT_YET_PAID"
	KindInvalidInput       Kind = "INVALID_INPUT"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindInternal           Kind = "INTERNAL"
)

// Error carries a Kind, a message that is safe to show to callers, and the
// underlying cause which is only ever logged.
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

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the caller-safe message for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
