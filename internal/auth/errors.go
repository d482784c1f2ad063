package auth

import "errors"

// ErrInvalidCredentials covers both unknown email and wrong password; the
// message is identical for the two so callers cannot tell which failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountBanned is returned when a banned user attempts to log in.
var ErrAccountBanned = errors.New("account is banned")

// The refresh-failure family.  The transport layer collapses all four into
// one generic "please login again" response so that attack detection is not
// distinguishable from ordinary expiry; the distinct values exist for audit
// logging and tests.
var (
	ErrInvalidToken    = errors.New("invalid or expired refresh token")
	ErrSessionNotFound = errors.New("session not found")
	ErrTokenReuse      = errors.New("refresh token reuse detected")
	ErrUserInvalid     = errors.New("user is no longer valid")
)
