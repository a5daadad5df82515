// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials indicates a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified indicates the account's email is not verified.
	ErrNotVerified = errors.New("email not verified")

	// ErrAccountDisabled indicates the account is inactive.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrUnauthorized indicates a missing, malformed, or stale access credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller's role or scope denies access.
	ErrForbidden = errors.New("forbidden")

	// ErrExpired indicates a refresh credential past its expiry.
	ErrExpired = errors.New("refresh token expired")

	// ErrRevoked indicates a refresh credential already consumed or revoked.
	ErrRevoked = errors.New("refresh token revoked")

	// ErrDeviceMismatch indicates a refresh credential presented by a device
	// other than the one it is bound to.
	ErrDeviceMismatch = errors.New("device mismatch")

	// ErrDeviceLimit indicates the concurrent-device cap was exceeded.
	ErrDeviceLimit = errors.New("device limit exceeded")

	// ErrPayloadTooLarge indicates a bulk upload over the item cap.
	ErrPayloadTooLarge = errors.New("payload too large")
)
