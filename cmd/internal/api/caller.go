package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Caller is the transport the clients need. *gateway.Gateway implements it.
type Caller interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, in, out any) error
	Patch(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string, out any) error
	Unauthenticated(ctx context.Context, method, path string, in, out any) error
}

// Page is the paginated list envelope. Count is -1 when the endpoint returned
// a bare array.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// getList accepts either a bare JSON array or a paginated envelope.
func getList[T any](ctx context.Context, c Caller, path string, query url.Values) (Page[T], error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, query, &raw); err != nil {
		return Page[T]{}, err
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Page[T]{Count: 0}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return Page[T]{}, fmt.Errorf("decode %s: %w", path, err)
		}
		return Page[T]{Count: -1, Results: items}, nil
	}

	var p Page[T]
	if err := json.Unmarshal(raw, &p); err != nil {
		return Page[T]{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setString(q url.Values, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		q.Set(key, v)
	}
}
