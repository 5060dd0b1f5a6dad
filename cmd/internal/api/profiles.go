package api

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// ProfileFilter narrows the profile search. Zero fields are omitted.
type ProfileFilter struct {
	Gender    string
	City      string
	Religion  string
	AgeMin    int
	AgeMax    int
	Interests []int64
	Page      int
}

// Query encodes the filter as backend query parameters.
func (f ProfileFilter) Query() url.Values {
	q := url.Values{}
	setString(q, "gender", f.Gender)
	setString(q, "city", f.City)
	setString(q, "religion", f.Religion)
	setInt(q, "age_min", f.AgeMin)
	setInt(q, "age_max", f.AgeMax)
	if len(f.Interests) > 0 {
		ids := make([]string, 0, len(f.Interests))
		for _, id := range f.Interests {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		q.Set("interests", strings.Join(ids, ","))
	}
	setInt(q, "page", f.Page)
	return q
}

// Profiles covers /profiles/ and /interests/.
type Profiles struct {
	c Caller
}

func NewProfiles(c Caller) *Profiles { return &Profiles{c: c} }

func (p *Profiles) Me(ctx context.Context) (apiv1.Profile, error) {
	var out apiv1.Profile
	err := p.c.Get(ctx, apiv1.PathProfileMe, nil, &out)
	return out, err
}

func (p *Profiles) UpdateMe(ctx context.Context, patch apiv1.ProfilePatch) (apiv1.Profile, error) {
	var out apiv1.Profile
	err := p.c.Patch(ctx, apiv1.PathProfileMe, patch, &out)
	return out, err
}

// DeleteMe deletes the caller's profile and account.
func (p *Profiles) DeleteMe(ctx context.Context) error {
	return p.c.Delete(ctx, apiv1.PathProfileMe, nil)
}

func (p *Profiles) List(ctx context.Context, f ProfileFilter) (Page[apiv1.Profile], error) {
	return getList[apiv1.Profile](ctx, p.c, apiv1.PathProfiles, f.Query())
}

func (p *Profiles) Interests(ctx context.Context) ([]apiv1.Interest, error) {
	page, err := getList[apiv1.Interest](ctx, p.c, apiv1.PathInterests, nil)
	return page.Results, err
}
