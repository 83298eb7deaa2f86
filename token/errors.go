package token

import "errors"

var (
	// ErrInvalidToken covers every access-token failure mode: missing, malformed,
	// bad signature, or expired. Callers are deliberately unable to tell these
	// apart, so a client can always attempt a refresh on rejection.
	ErrInvalidToken = errors.New("invalid or expired token")

	ErrNoSecret = errors.New("signing secret is required")
)
