package realtime

import (
	"sync"
	"time"

	apiv1 "vivahvows/shared/contracts/api/v1"
)

// Feed is the in-memory notification list, newest first.
type Feed struct {
	mu     sync.RWMutex
	items  []Event
	unread int
	limit  int
}

// NewFeed keeps at most limit items (0 means 200).
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = 200
	}
	return &Feed{limit: limit}
}

// Push prepends ev. Local events are kept but never counted as unread.
func (f *Feed) Push(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append([]Event{ev}, f.items...)
	if !ev.IsRead && !ev.Local {
		f.unread++
	}
	f.trimLocked()
}

// Load replaces the feed with server notifications.
func (f *Feed) Load(list []apiv1.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = f.items[:0]
	f.unread = 0
	for _, n := range list {
		ev := Event{
			ID:         NewEventID(n.CreatedAt),
			ServerID:   n.ID,
			Event:      n.Event,
			Payload:    n.Payload,
			ReceivedAt: n.CreatedAt,
			IsRead:     n.IsRead,
		}
		f.items = append(f.items, ev)
		if !n.IsRead {
			f.unread++
		}
	}
	f.trimLocked()
}

// MarkRead flips the read state of the item with the given local id and
// reports whether it changed.
func (f *Feed) MarkRead(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.items {
		if f.items[i].ID != id {
			continue
		}
		if f.items[i].IsRead {
			return false
		}
		f.items[i].IsRead = true
		if !f.items[i].Local {
			f.unread--
		}
		return true
	}
	return false
}

// MarkAllRead flips every item to read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].IsRead = true
	}
	f.unread = 0
}

func (f *Feed) Unread() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// Items returns a copy of the feed.
func (f *Feed) Items() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Event, len(f.items))
	copy(out, f.items)
	return out
}

// Find returns the item with the given local id.
func (f *Feed) Find(id string) (Event, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ev := range f.items {
		if ev.ID == id {
			return ev, true
		}
	}
	return Event{}, false
}

// Since returns items received after t, newest first.
func (f *Feed) Since(t time.Time) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Event
	for _, ev := range f.items {
		if ev.ReceivedAt.After(t) {
			out = append(out, ev)
		}
	}
	return out
}

func (f *Feed) trimLocked() {
	if len(f.items) <= f.limit {
		return
	}
	for _, ev := range f.items[f.limit:] {
		if !ev.IsRead && !ev.Local {
			f.unread--
		}
	}
	f.items = f.items[:f.limit]
}
