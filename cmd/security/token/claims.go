package token

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access-token claims the client reads.
type Claims struct {
	UserID    string
	TokenType string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token is past its expiry at now, allowing skew.
func (c Claims) Expired(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt.Add(skew))
}

// Inspect decodes a JWT without verifying its signature.
// Opaque (non-JWT) tokens return ErrMalformed.
func Inspect(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrEmptyToken
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var out Claims

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: exp: %v", ErrMalformed, err)
	}
	if exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	iat, err := mc.GetIssuedAt()
	if err == nil && iat != nil {
		out.IssuedAt = iat.Time.UTC()
	}

	out.UserID = claimString(mc["user_id"])
	if out.UserID == "" {
		if sub, err := mc.GetSubject(); err == nil {
			out.UserID = sub
		}
	}
	out.TokenType = claimString(mc["token_type"])

	return out, nil
}

// ExpiresAt is a shortcut for Inspect(raw).ExpiresAt that fails when exp is absent.
func ExpiresAt(raw string) (time.Time, error) {
	c, err := Inspect(raw)
	if err != nil {
		return time.Time{}, err
	}
	if c.ExpiresAt.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return c.ExpiresAt, nil
}

// claimString renders string and numeric claims uniformly (user_id is numeric
// in the backend's tokens).
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
