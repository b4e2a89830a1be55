// Package errors provides the shared error vocabulary of the key pipeline.
// Domain packages wrap these sentinels so commands can classify a failure
// (bad input, missing object, unreachable backend) without inspecting strings.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested key, backup or artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the requested change collides with existing state.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates the input data is invalid or fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the backend rejected the supplied credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller is not allowed to perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a remote dependency could not be reached in time.
	ErrUnavailable = errors.New("unavailable")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
