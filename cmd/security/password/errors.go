package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrNumericPassword  = errors.New("password is entirely numeric")
	ErrTooSimilar       = errors.New("password too similar to account details")
)
