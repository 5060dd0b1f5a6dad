package api

import (
	"context"
	"net/url"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// Notifications covers /notifications/.
type Notifications struct {
	c Caller
}

func NewNotifications(c Caller) *Notifications { return &Notifications{c: c} }

// List returns notifications, newest first. unreadOnly filters server-side.
func (n *Notifications) List(ctx context.Context, unreadOnly bool) ([]apiv1.Notification, error) {
	var q url.Values
	if unreadOnly {
		q = url.Values{"is_read": {"false"}}
	}
	page, err := getList[apiv1.Notification](ctx, n.c, apiv1.PathNotifications, q)
	return page.Results, err
}

func (n *Notifications) MarkRead(ctx context.Context, id int64) (apiv1.Notification, error) {
	var out apiv1.Notification
	err := n.c.Patch(ctx, apiv1.NotificationPath(id), apiv1.NotificationPatch{IsRead: true}, &out)
	return out, err
}
