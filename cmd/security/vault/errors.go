package vault

import "errors"

var (
	ErrEmptyPassphrase = errors.New("vault: empty passphrase")
	ErrInvalidEnvelope = errors.New("vault: invalid envelope")
	// ErrDecrypt covers both a wrong passphrase and a tampered envelope.
	ErrDecrypt = errors.New("vault: decrypt failed")
)
