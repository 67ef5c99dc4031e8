// Package apperror defines the domain error taxonomy shared by all layers.
//
// Services return these typed errors; the HTTP layer maps them to status
// codes in one place. errors.Is works across the chain because AppError
// implements Unwrap.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrEventFull   = errors.New("event full")
	ErrUnavailable = errors.New("temporarily unavailable")
)

type AppError struct {
	Err     error  // sentinel classifying the failure
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// EventFull signals a join attempt against an event with no spots remaining.
// Terminal for the call: the transaction applies no changes, and the caller
// can present a "full" message instead of a generic failure.
func EventFull(id string) *AppError {
	return &AppError{
		Err:     ErrEventFull,
		Message: fmt.Sprintf("event %s is full", id),
	}
}

// Unavailable signals a transient failure: the operation hit write contention
// past its retry budget and applied no changes. The whole call may be retried.
func Unavailable(operation string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: fmt.Sprintf("%s did not complete due to contention, please retry", operation),
	}
}
