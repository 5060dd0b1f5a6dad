// Package token provides client-side helpers for bearer tokens.
//
// The client never verifies token signatures: the backend is authoritative.
// It only needs two things from a token:
//   - a short, non-reversible fingerprint that is safe to put in logs
//   - the unverified "exp" and "user_id" claims of a JWT access token, used
//     for diagnostics and to skip requests that are certain to be rejected
package token
