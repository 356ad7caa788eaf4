// Package errors provides centralized error definitions for sessions.
package errors

import "errors"

// Session errors.
var (
	// ErrNotConnected indicates a session accessor was used before a
	// successful connect.
	ErrNotConnected = errors.New("session not connected")

	// ErrAuthenticationFailed indicates the directory rejected the credentials,
	// or no credentials were available at all.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDirectoryUnavailable indicates the directory could not be reached or
	// timed out.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	// ErrUserNotFound indicates the directory holds no matching identity.
	ErrUserNotFound = errors.New("user not found")

	// ErrValidationFailed indicates a session failed its validator check, or a
	// reconnect resolved a different identity.
	ErrValidationFailed = errors.New("validation failed")

	// ErrStorageFailure indicates a session storage read or write failed.
	ErrStorageFailure = errors.New("session storage failure")
)

// Driver errors.
var (
	// ErrDriverNotRegistered indicates the requested driver type is not registered.
	ErrDriverNotRegistered = errors.New("driver type not registered")

	// ErrDriverConfigInvalid indicates the driver configuration is invalid.
	ErrDriverConfigInvalid = errors.New("invalid driver configuration")

	// ErrStorageUnavailable indicates the groupware storage backend could not
	// be opened for the session.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
