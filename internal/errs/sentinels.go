// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication, assertion or verification.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email or credential ID taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation")
)

// Passkey ceremony failures.
var (
	// ErrUnsupportedEnvironment indicates no user-verifying platform authenticator is available.
	ErrUnsupportedEnvironment = errors.New("platform authenticator unavailable")

	// ErrUserCancelled indicates the user dismissed the platform prompt or let it time out.
	ErrUserCancelled = errors.New("cancelled by user")

	// ErrAuthenticator indicates a platform failure unrelated to user choice.
	ErrAuthenticator = errors.New("authenticator error")
)

var (
	// ErrLocked indicates a vault operation was attempted while the access gate is not unlocked.
	ErrLocked = errors.New("vault locked")

	// ErrInvalidRecord indicates a stored row does not decode into its strict domain type.
	ErrInvalidRecord = errors.New("invalid record")
)
