// Package api holds typed clients for the VivahVows REST endpoints.
//
// Clients are thin: they build paths and payloads from the v1 contracts and
// delegate transport, credentials and token refresh to a Caller (in
// production, *gateway.Gateway).
package api
