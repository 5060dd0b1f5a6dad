// Package lifecycle drives the client's session state machine:
// anonymous -> authenticating -> authenticated, and back to anonymous on
// logout or when the gateway gives up on refreshing.
//
// The controller is the only writer of login/logout state. Observers
// subscribe to a channel of Events rather than polling.
package lifecycle
