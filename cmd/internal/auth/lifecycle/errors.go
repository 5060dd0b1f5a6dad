package lifecycle

import (
	"errors"
	"fmt"

	"vivahvows/cmd/internal/gateway"
)

// Fallback messages when the backend gives no detail.
const (
	FallbackLogin    = "Unable to login"
	FallbackRegister = "Registration failed"
)

// ErrNotAuthenticated is returned by operations that need a session.
var ErrNotAuthenticated = errors.New("not authenticated")

// InvalidCredentialsError is returned when the backend rejects a login.
type InvalidCredentialsError struct {
	Detail string
	Fields map[string][]string
	Err    error
}

func (e *InvalidCredentialsError) Error() string { return e.Detail }
func (e *InvalidCredentialsError) Unwrap() error { return e.Err }

// ValidationError carries per-field messages for a rejected form.
type ValidationError struct {
	Detail string
	Fields map[string][]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Detail
	}
	return fmt.Sprintf("%s (%d field errors)", e.Detail, len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// asFormError converts a 4xx APIError into the form error built by mk.
// Other errors pass through unchanged.
func asFormError[T error](err error, fallback string, mk func(detail string, fields map[string][]string, cause error) T) error {
	ae, ok := gateway.AsAPIError(err)
	if !ok || ae.Status < 400 || ae.Status >= 500 {
		return err
	}
	return mk(ae.Message(fallback), ae.Fields, err)
}

func invalidCredentials(err error) error {
	return asFormError(err, FallbackLogin, func(d string, f map[string][]string, cause error) *InvalidCredentialsError {
		return &InvalidCredentialsError{Detail: d, Fields: f, Err: cause}
	})
}

func validation(err error, fallback string) error {
	return asFormError(err, fallback, func(d string, f map[string][]string, cause error) *ValidationError {
		return &ValidationError{Detail: d, Fields: f, Err: cause}
	})
}
