// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Channel and entity resolution errors.
var (
	// ErrChannelNotFound indicates a channel could not be found.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNotAChannel indicates the entity is not a channel type.
	ErrNotAChannel = errors.New("entity is not a channel")
)

// Configuration errors.
var (
	// ErrInvalidConfig indicates a configuration value is missing or inconsistent.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownBackend indicates an unsupported provider or store backend name.
	ErrUnknownBackend = errors.New("unknown backend")
)

// Extraction errors.
var (
	// ErrRetriesExhausted indicates every extraction attempt failed.
	ErrRetriesExhausted = errors.New("extraction retries exhausted")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")
)

// Store errors.
var (
	// ErrStoreRateLimited indicates the tabular store rejected a call for quota reasons.
	ErrStoreRateLimited = errors.New("store rate limited")

	// ErrStoreTransient indicates a retryable store failure (5xx, network).
	ErrStoreTransient = errors.New("store transient error")

	// ErrAppendFailed indicates rows could not be appended after all retries.
	ErrAppendFailed = errors.New("append rows failed after retries")

	// ErrTableNotFound indicates the named sheet or table does not exist.
	ErrTableNotFound = errors.New("table not found")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDateRange indicates the backfill window ends before it starts.
	ErrInvalidDateRange = errors.New("invalid date range")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
