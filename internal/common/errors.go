// Package common defines shared constants and sentinel errors used across the
// client and server layers of tallybook. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrVersionConflict signals that the remote store rejected a write
	// because a submitted record's version is not strictly newer than the
	// stored one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnavailable covers transient transport failures: connection
	// refused, timeouts, 5xx responses. Eligible for retry.
	ErrUnavailable = errors.New("remote store unavailable")

	// ErrMalformedResponse marks a remote payload that failed validation.
	// Treated as transient: the response is never applied to local state.
	ErrMalformedResponse = errors.New("malformed remote response")

	// ErrMalformedRecord marks a record whose logical key cannot be
	// derived. A merge batch containing one is rejected as a whole.
	ErrMalformedRecord = errors.New("malformed record")
)
