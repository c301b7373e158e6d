package types

import "errors"

var (
	// ErrAddressInvalid means the configured host is neither the default
	// hostname nor a dotted-quad IPv4 address. This is the only fatal setup
	// error: a device must not start against an invalid address.
	ErrAddressInvalid = errors.New("address invalid")

	// ErrAuthUnavailable means a session cookie could not be obtained or
	// refreshed.
	ErrAuthUnavailable = errors.New("session unavailable")

	// ErrTransportFailure means every transport attempt was exhausted.
	// Pollers treat it as a skipped cycle, never as fatal.
	ErrTransportFailure = errors.New("transport failure")

	// ErrExtractionIncomplete means a required field was absent from the
	// device HTML.
	ErrExtractionIncomplete = errors.New("extraction incomplete")

	// ErrValidationFailed means a sample or single value is outside its
	// domain.
	ErrValidationFailed = errors.New("validation failed")

	// ErrChargeLimitRejected means a requested charging limit is outside
	// [100, ceiling].
	ErrChargeLimitRejected = errors.New("charge limit rejected")
)
