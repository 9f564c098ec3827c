// Package store is the gateway's query cache: the views the UI reads about
// notifications and settings, with the staleness rules the merger relies on.
package store

import (
	"encoding/json"
	"sync"
	"time"

	"guardian-gateway/internal/model"
)

// RecentLimit caps the recent-notifications view.
const RecentLimit = 5

type pageEntry struct {
	page  model.NotificationPage
	stale bool
}

type Store struct {
	mu sync.RWMutex

	recent       []model.Notification
	recentLoaded bool

	unread       int64
	unreadLoaded bool

	pages map[string]*pageEntry

	settings json.RawMessage
}

func New() *Store {
	return &Store{pages: make(map[string]*pageEntry)}
}

// Recent returns a copy of the recent list and whether it was ever loaded.
func (s *Store) Recent() ([]model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotifications(s.recent), s.recentLoaded
}

// SetRecent stores a fetched page as the recent list. Pushes merged before
// the first load are newer than the page, so those missing from it stay on
// top.
func (s *Store) SetRecent(items []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.Notification, 0, RecentLimit)
	if !s.recentLoaded {
		for _, n := range s.recent {
			if !containsID(items, n.ID) {
				next = append(next, n)
			}
		}
	}
	for _, n := range items {
		if !containsID(next, n.ID) {
			next = append(next, n)
		}
	}
	if len(next) > RecentLimit {
		next = next[:RecentLimit]
	}
	s.recent = next
	s.recentLoaded = true
}

// MergeRecent puts n at the head of the recent list, dropping any earlier
// entry with the same id, and keeps at most RecentLimit items. An unloaded
// list stays unloaded so the next read still fetches the server's page.
func (s *Store) MergeRecent(n model.Notification) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Notification, 0, RecentLimit)
	next = append(next, n)
	for _, existing := range s.recent {
		if existing.ID == n.ID {
			continue
		}
		if len(next) == RecentLimit {
			break
		}
		next = append(next, existing)
	}
	s.recent = next
	return cloneNotifications(next)
}

func (s *Store) UnreadCount() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread, s.unreadLoaded
}

func (s *Store) SetUnreadCount(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.unread = n
	s.unreadLoaded = true
}

// IncrementUnread adds one to a loaded counter. An unloaded counter is left
// for the next read to fetch, since the server count already includes the
// new notification.
func (s *Store) IncrementUnread() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.unreadLoaded {
		return 0, false
	}
	s.unread++
	return s.unread, true
}

// InvalidateNotificationList marks every cached page stale. Pages are
// refetched on their next read.
func (s *Store) InvalidateNotificationList() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidatePagesLocked()
}

func (s *Store) invalidatePagesLocked() {
	for _, e := range s.pages {
		e.stale = true
	}
}

// NotificationPage returns the cached page for key. fresh is false when the
// page is missing or stale.
func (s *Store) NotificationPage(key string) (page model.NotificationPage, fresh bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.pages[key]
	if !ok {
		return model.NotificationPage{}, false
	}
	page = e.page
	page.Content = cloneNotifications(e.page.Content)
	return page, !e.stale
}

func (s *Store) PutNotificationPage(key string, page model.NotificationPage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page.Content = cloneNotifications(page.Content)
	s.pages[key] = &pageEntry{page: page}
}

// MarkRead reflects a confirmed read. When the item is not in the recent
// list its previous state is unknown, so the counter is dropped and refetched.
func (s *Store) MarkRead(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.recent {
		if s.recent[i].ID != id {
			continue
		}
		found = true
		if !s.recent[i].IsRead {
			s.recent[i].IsRead = true
			ts := model.NewTimestamp(at)
			s.recent[i].ReadAt = &ts
			if s.unreadLoaded && s.unread > 0 {
				s.unread--
			}
		}
	}
	if !found {
		s.unreadLoaded = false
	}
	s.invalidatePagesLocked()
}

func (s *Store) MarkAllRead(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := model.NewTimestamp(at)
	for i := range s.recent {
		if !s.recent[i].IsRead {
			s.recent[i].IsRead = true
			readAt := ts
			s.recent[i].ReadAt = &readAt
		}
	}
	s.unread = 0
	s.unreadLoaded = true
	s.invalidatePagesLocked()
}

func (s *Store) Settings() (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, false
	}
	return append(json.RawMessage(nil), s.settings...), true
}

func (s *Store) SetSettings(raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = append(json.RawMessage(nil), raw...)
}

// Reset drops every cached view. Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = nil
	s.recentLoaded = false
	s.unread = 0
	s.unreadLoaded = false
	s.pages = make(map[string]*pageEntry)
	s.settings = nil
}

func containsID(items []model.Notification, id int64) bool {
	for _, n := range items {
		if n.ID == id {
			return true
		}
	}
	return false
}

func cloneNotifications(in []model.Notification) []model.Notification {
	if in == nil {
		return nil
	}
	out := make([]model.Notification, len(in))
	copy(out, in)
	return out
}
