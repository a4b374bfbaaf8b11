// Package apperr defines the error taxonomy shared by the storefront services
// and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code categorizes an application error.
type Code string

const (
	// InvalidArgument is malformed, missing or zero-value input.
	InvalidArgument Code = "INVALID_ARGUMENT"

	// NotFound means a referenced entity is absent.
	NotFound Code = "NOT_FOUND"

	// InsufficientStock means a conditional stock decrement affected zero rows.
	InsufficientStock Code = "INSUFFICIENT_STOCK"

	// InvalidState means the operation is not allowed in the current state,
	// e.g. checking out an empty cart.
	InvalidState Code = "INVALID_STATE"

	// Conflict is a concurrent or duplicate request the service refuses.
	Conflict Code = "CONFLICT"

	Unauthenticated Code = "UNAUTHENTICATED"
	Forbidden       Code = "FORBIDDEN"
	RateLimited     Code = "RATE_LIMITED"

	// OrderCreationFailed means the order row could not be written.
	OrderCreationFailed Code = "ORDER_CREATION_FAILED"

	// PartialOrderFailure means an order line could not be written.
	PartialOrderFailure Code = "PARTIAL_ORDER_FAILURE"

	Internal Code = "INTERNAL"
)

// Error is an application error with a category and an optional workflow step.
type Error struct {
	Code    Code
	Message string

	// Step names the checkout step that failed, if any.
	Step string

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Step != "" {
		msg = fmt.Sprintf("%s (step=%s)", msg, e.Step)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithStep returns a copy of e tagged with the failing step.
func (e *Error) WithStep(step string) *Error {
	cp := *e
	cp.Step = step
	return &cp
}

// CodeOf returns the code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool          { return Is(err, NotFound) }
func IsInvalidArgument(err error) bool   { return Is(err, InvalidArgument) }
func IsInsufficientStock(err error) bool { return Is(err, InsufficientStock) }

// Message returns the user-facing message of err. Internal errors never leak
// their underlying cause.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Internal server error"
}

// StepOf returns the workflow step recorded on err, if any.
func StepOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Step
	}
	return ""
}

// HTTPStatus maps a code onto a response status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument, InsufficientStock:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case InvalidState, Conflict:
		return http.StatusConflict
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
