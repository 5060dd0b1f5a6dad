// Package password provides a client-side password pre-check for VivahVows.
//
// The backend remains the authority on password rules. This package rejects
// passwords the backend is certain to refuse (too short, entirely numeric,
// trivially common, or close to the account's own username/email) so the
// registration and reset flows can fail fast without a round trip.
//
// Configuration is read from the environment (VIVAH_PASSWORD_*) with defaults
// that mirror the backend's stock validators.
package password
