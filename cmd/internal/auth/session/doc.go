// Package session persists the client's credential pair and cached user
// identity under a single namespaced key.
//
// The pair (access, refresh) is stored all-or-nothing: Set rejects a partial
// pair and Get reports a partial or undecodable record as absent. Backends
// are interchangeable behind Store: memory (tests, one-shot commands), a JSON
// file that other processes on the host can observe, Redis, and Postgres.
package session
