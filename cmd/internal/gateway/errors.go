package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNetwork marks failures where no HTTP response was received.
	ErrNetwork = errors.New("network failure")

	// ErrUnauthorized marks a 401 that could not be recovered by refreshing.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation marks a 4xx carrying field-level messages.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a 404.
	ErrNotFound = errors.New("not found")

	// ErrRefreshFailed is logged and used internally. Callers never receive it
	// in place of the 401 that triggered the refresh.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrSessionEnded is returned by session writes that lost a race with
	// the session ending or being replaced.
	ErrSessionEnded = errors.New("session ended")

	errNoRefreshToken = errors.New("no refresh token")
)

// NetworkError wraps a transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Code   string
	Detail string
	// Fields holds per-field messages, including "non_field_errors".
	Fields map[string][]string
	Body   []byte
}

func (e *APIError) Error() string {
	msg := e.Message("")
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 400 && e.Status < 500 && len(e.Fields) > 0:
		return ErrValidation
	}
	return nil
}

// Message returns the detail, else the first field message, else fallback.
func (e *APIError) Message(fallback string) string {
	if e.Detail != "" {
		return e.Detail
	}
	if msgs := e.Fields["non_field_errors"]; len(msgs) > 0 {
		return msgs[0]
	}
	for _, k := range e.FieldNames() {
		if msgs := e.Fields[k]; len(msgs) > 0 {
			return k + ": " + msgs[0]
		}
	}
	return fallback
}

// FieldNames returns the field keys in sorted order.
func (e *APIError) FieldNames() []string {
	out := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNetwork(err error) bool      { return errors.Is(err, ErrNetwork) }

// AsAPIError unwraps err to *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// parseAPIError understands the backend's error shapes:
//
//	{"detail": "..."}
//	{"field": ["msg", ...], "non_field_errors": [...]}
//	{"error": {"code": "...", "message": "..."}}
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: body}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		e.Detail = strings.TrimSpace(string(body))
		if len(e.Detail) > 200 || strings.HasPrefix(e.Detail, "<") {
			e.Detail = ""
		}
		return e
	}

	for k, raw := range top {
		switch k {
		case "detail":
			_ = json.Unmarshal(raw, &e.Detail)
		case "code":
			_ = json.Unmarshal(raw, &e.Code)
		case "error":
			var env struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &env) == nil {
				e.Code = env.Code
				e.Detail = env.Message
			}
		default:
			if msgs := fieldMessages(raw); len(msgs) > 0 {
				if e.Fields == nil {
					e.Fields = make(map[string][]string)
				}
				e.Fields[k] = msgs
			}
		}
	}
	return e
}

func fieldMessages(raw json.RawMessage) []string {
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return list
	}
	var one string
	if json.Unmarshal(raw, &one) == nil && one != "" {
		return []string{one}
	}
	// Nested serializer errors: flatten one level.
	var nested map[string][]string
	if json.Unmarshal(raw, &nested) == nil {
		var out []string
		keys := make([]string, 0, len(nested))
		for k := range nested {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, m := range nested[k] {
				out = append(out, k+": "+m)
			}
		}
		return out
	}
	return nil
}
