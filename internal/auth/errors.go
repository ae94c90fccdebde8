package auth

import "errors"

// Failure taxonomy. The HTTP layer maps these to 401/403 with generic
// bodies; the internal cause (unknown user vs wrong password, expired vs
// reused token) is visible only in logs and metrics.
var (
	// ErrInvalidCredentials is returned from Login for any cause.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// Decode-time failures.
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrExpiredToken   = errors.New("auth: token expired")
	ErrMalformedToken = errors.New("auth: malformed token")

	// ErrTokenReuseOrUnknown is the store's uniform consume failure. It does
	// not distinguish a token that never existed from one already used.
	ErrTokenReuseOrUnknown = errors.New("auth: refresh token unknown or already used")

	// ErrRefreshFailed is the single failure Refresh surfaces to callers.
	ErrRefreshFailed = errors.New("auth: refresh failed")

	// ErrUnauthorized is the identify-gate failure; ErrForbidden means the
	// token was valid but the principal kind does not match the gate.
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")

	// ErrNotFound is returned by the directory when no account matches.
	ErrNotFound = errors.New("auth: not found")
)
