package auth

import "errors"

var (
	// ErrInvalidCredentials covers every login failure: unknown username, bad
	// password, inactive account. Callers must not distinguish between them.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken covers malformed, expired, revoked and stale tokens.
	ErrInvalidToken = errors.New("auth: invalid or expired token")

	ErrNoToken      = errors.New("auth: missing bearer token")
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: already exists")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrForbidden    = errors.New("auth: forbidden")
)
