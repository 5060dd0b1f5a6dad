// Package gateway is the authenticated HTTP client for the VivahVows API.
//
// Every request carries the current access token. When the backend answers
// 401 the gateway refreshes the token pair once, queues any other requests
// that hit 401 meanwhile, and replays each of them exactly once with the new
// token. If the refresh cannot succeed the stored session is cleared and every
// queued caller receives its own original 401.
//
// Refresh state belongs to a Gateway value; separate gateways never share a
// refresh.
package gateway
