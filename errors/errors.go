// Package errors provides error handling for TeamTempo.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrSourceFetch) {
//	    // degrade to a partial result
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// StatusClientClosedRequest is the nginx-originated status code for a client
// that went away before the response was ready. net/http has no constant for
// it.
const StatusClientClosedRequest = 499

// Common sentinel errors for use across TeamTempo.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrSourceFetch indicates one upstream source failed (network, malformed
	// response, auth rejection at the source). The aggregator recovers from
	// this locally; it never aborts the other source.
	ErrSourceFetch = New("source fetch failed")

	// ErrOperationCancelled indicates the caller requested cancellation and
	// the operation observed the flag at a checkpoint. A hard stop, distinct
	// from partial source failure.
	ErrOperationCancelled = New("operation cancelled")

	// ErrTimeout indicates an operation ran past its ceiling
	ErrTimeout = New("operation timed out")

	// ErrConnectionExists indicates an SSE connection id is already bound
	ErrConnectionExists = New("connection already exists")

	// ErrConnectionNotFound indicates an SSE connection id is not bound
	ErrConnectionNotFound = New("connection not found")

	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// HTTPStatus maps recognized application errors to an HTTP status code.
// Anything unrecognized is a 500; callers must not leak its message verbatim
// to clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is(err, ErrOperationCancelled):
		return StatusClientClosedRequest
	case Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsApplicationError reports whether err maps to a recognized application
// error whose message is safe to surface to clients.
func IsApplicationError(err error) bool {
	return IsAny(err,
		ErrSourceFetch,
		ErrOperationCancelled,
		ErrTimeout,
		ErrInvalidRequest,
		ErrNotFound,
	)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
