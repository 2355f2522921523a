package model

import (
	"errors"
	"fmt"
)

// Per-target lookup failure kinds. These are recoverable: the speed client
// logs them and degrades the target to an Unknown outcome.
var (
	// ErrUpstreamUnavailable covers transport errors and non-success statuses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse covers payloads with the wrong shape or types.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrMismatchedIdentity means the echoed reference code differs from
	// the expected one.
	ErrMismatchedIdentity = errors.New("mismatched identity")

	// ErrInvalidRequest means the entry lacks the fields a source needs.
	ErrInvalidRequest = errors.New("invalid request")
)

// FailureKind returns a short label for a lookup error, suitable for
// metric labels and log fields.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrMismatchedIdentity):
		return "mismatched_identity"
	default:
		return "error"
	}
}

// ExitCode defines the process exit codes of the CLI. Cron wrappers and
// deploy scripts rely on these to tell input problems from write failures.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidInput indicates the LED location table failed validation.
	// No network request was made.
	ExitInvalidInput ExitCode = 2

	// ExitConfigError indicates the configuration file is missing or invalid.
	ExitConfigError ExitCode = 3

	// ExitWriteFailed indicates an artifact could not be written.
	ExitWriteFailed ExitCode = 4
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
