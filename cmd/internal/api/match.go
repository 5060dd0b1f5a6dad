package api

import (
	"context"
	"fmt"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// Match covers /match/.
type Match struct {
	c Caller
}

func NewMatch(c Caller) *Match { return &Match{c: c} }

// Suggestions returns candidate profiles. The filter narrows the backend's
// preference-based defaults.
func (m *Match) Suggestions(ctx context.Context, f ProfileFilter) ([]apiv1.Profile, error) {
	page, err := getList[apiv1.Profile](ctx, m.c, apiv1.PathSuggestions, f.Query())
	return page.Results, err
}

func (m *Match) Like(ctx context.Context, userID int64) (apiv1.MatchActionResponse, error) {
	return m.act(ctx, apiv1.ActionLike, userID)
}

func (m *Match) Reject(ctx context.Context, userID int64) (apiv1.MatchActionResponse, error) {
	return m.act(ctx, apiv1.ActionReject, userID)
}

func (m *Match) Block(ctx context.Context, userID int64) (apiv1.MatchActionResponse, error) {
	return m.act(ctx, apiv1.ActionBlock, userID)
}

// Mutual lists users who liked the caller back.
func (m *Match) Mutual(ctx context.Context) ([]apiv1.MutualMatch, error) {
	page, err := getList[apiv1.MutualMatch](ctx, m.c, apiv1.PathMutual, nil)
	return page.Results, err
}

func (m *Match) act(ctx context.Context, action string, userID int64) (apiv1.MatchActionResponse, error) {
	if userID <= 0 {
		return apiv1.MatchActionResponse{}, fmt.Errorf("invalid user id %d", userID)
	}
	var out apiv1.MatchActionResponse
	err := m.c.Post(ctx, apiv1.MatchActionPath(action, userID), nil, &out)
	return out, err
}
