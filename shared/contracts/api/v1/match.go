package v1

import (
	"fmt"
	"time"
)

const (
	PathSuggestions = "/match/suggestions/"
	PathMutual      = "/match/mutual/"
)

// Match action verbs used in /match/{action}/{userId}/.
const (
	ActionLike   = "like"
	ActionReject = "reject"
	ActionBlock  = "block"
)

// MatchActionPath returns the action endpoint for a target user.
func MatchActionPath(action string, userID int64) string {
	return fmt.Sprintf("/match/%s/%d/", action, userID)
}

// MatchActionResponse is returned after like/reject/block.
// Match is true when a like completed a mutual match.
type MatchActionResponse struct {
	Detail string `json:"detail"`
	Match  bool   `json:"match,omitempty"`
}

// MutualMatch is a pairing where both users liked each other.
type MutualMatch struct {
	ID             int64     `json:"id"`
	UserOne        int64     `json:"user_one"`
	UserTwo        int64     `json:"user_two"`
	CreatedAt      time.Time `json:"created_at"`
	PartnerProfile Profile   `json:"partner_profile"`
}
