package lifecycle

import (
	apiv1 "vivahvows/shared/contracts/api/v1"

	"vivahvows/cmd/internal/auth/session"
)

// State is the controller's session state.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Event is published on every state, identity or profile change.
type Event struct {
	State   State
	Loading bool
	User    *session.Identity
	Profile *apiv1.Profile
	// Reason is set when the change was not caller-initiated
	// (for example "refresh_failed").
	Reason string
}

// publish delivers ev to every subscriber without blocking. A slow
// subscriber loses its oldest pending event, never the newest.
func publish(subs map[int]chan Event, ev Event) {
	for _, ch := range subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
