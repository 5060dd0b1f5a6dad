package session

import "errors"

var (
	// ErrPartialCredentials is returned by Set when only one of access/refresh is present.
	ErrPartialCredentials = errors.New("partial credential pair")

	// ErrConfig is returned for invalid store configuration.
	ErrConfig = errors.New("invalid store config")

	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("store closed")
)
