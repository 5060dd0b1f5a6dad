package token

import "errors"

// Public, stable errors for callers.
var (
	ErrEmptyToken = errors.New("empty token")
	ErrMalformed  = errors.New("malformed token")
	ErrNoExpiry   = errors.New("token has no exp claim")
)
