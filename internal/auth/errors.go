package auth

import "errors"

var (
	// ErrInvalidCredentials is the single outward-facing signal for every
	// credential failure; callers never learn whether the identifier or the
	// secret was wrong.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrMissingToken = errors.New("auth: missing token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrInvalidRole  = errors.New("auth: insufficient role")

	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")
)
