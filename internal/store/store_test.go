package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"guardian-gateway/internal/model"
)

func item(id int64) model.Notification {
	return model.Notification{ID: id, Type: model.NotificationSystem, Title: "t"}
}

func ids(items []model.Notification) []int64 {
	out := make([]int64, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestMergeRecent_OrderDedupAndCap(t *testing.T) {
	s := New()
	for i := int64(1); i <= 7; i++ {
		s.MergeRecent(item(i))
	}
	got, loaded := s.Recent()
	require.False(t, loaded)
	require.Equal(t, []int64{7, 6, 5, 4, 3}, ids(got))

	s.MergeRecent(item(5))
	got, _ = s.Recent()
	require.Equal(t, []int64{5, 7, 6, 4, 3}, ids(got))
}

func TestSetRecent_Truncates(t *testing.T) {
	s := New()
	s.SetRecent([]model.Notification{item(1), item(2), item(3), item(4), item(5), item(6)})
	got, _ := s.Recent()
	require.Len(t, got, RecentLimit)
}

func TestSetRecent_KeepsPushesMergedBeforeLoad(t *testing.T) {
	s := New()
	s.MergeRecent(item(99))
	s.MergeRecent(item(3))

	s.SetRecent([]model.Notification{item(5), item(4), item(3), item(2), item(1)})
	got, loaded := s.Recent()
	require.True(t, loaded)
	require.Equal(t, []int64{99, 5, 4, 3, 2}, ids(got))
}

func TestSetRecent_ReplacesLoadedList(t *testing.T) {
	s := New()
	s.SetRecent([]model.Notification{item(1)})
	s.MergeRecent(item(2))

	s.SetRecent([]model.Notification{item(7), item(6)})
	got, _ := s.Recent()
	require.Equal(t, []int64{7, 6}, ids(got))
}

func TestIncrementUnread_RequiresLoadedCounter(t *testing.T) {
	s := New()
	_, ok := s.IncrementUnread()
	require.False(t, ok)

	s.SetUnreadCount(2)
	n, ok := s.IncrementUnread()
	require.True(t, ok)
	require.Equal(t, int64(3), n)
}

func TestInvalidateNotificationList(t *testing.T) {
	s := New()
	key := model.NotificationQuery{Page: 0, Size: 20}.Key()
	s.PutNotificationPage(key, model.NotificationPage{Content: []model.Notification{item(1)}})

	_, fresh := s.NotificationPage(key)
	require.True(t, fresh)

	s.InvalidateNotificationList()
	page, fresh := s.NotificationPage(key)
	require.False(t, fresh)
	require.Len(t, page.Content, 1)
}

func TestMarkRead(t *testing.T) {
	s := New()
	s.SetRecent([]model.Notification{item(1), item(2)})
	s.SetUnreadCount(2)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.MarkRead(2, now)
	recent, _ := s.Recent()
	require.True(t, recent[1].IsRead)
	require.NotNil(t, recent[1].ReadAt)
	n, loaded := s.UnreadCount()
	require.True(t, loaded)
	require.Equal(t, int64(1), n)

	s.MarkRead(2, now)
	n, _ = s.UnreadCount()
	require.Equal(t, int64(1), n, "second read of the same item must not decrement")

	s.MarkRead(99, now)
	_, loaded = s.UnreadCount()
	require.False(t, loaded, "unknown item drops the counter for refetch")
}

func TestMarkAllRead(t *testing.T) {
	s := New()
	s.SetRecent([]model.Notification{item(1), item(2)})
	s.SetUnreadCount(5)
	s.MarkAllRead(time.Now())

	recent, _ := s.Recent()
	for _, n := range recent {
		require.True(t, n.IsRead)
	}
	n, loaded := s.UnreadCount()
	require.True(t, loaded)
	require.Zero(t, n)
}

func TestReset(t *testing.T) {
	s := New()
	s.SetRecent([]model.Notification{item(1)})
	s.SetUnreadCount(1)
	s.SetSettings(json.RawMessage(`{"theme":"DARK"}`))
	s.Reset()

	_, loaded := s.Recent()
	require.False(t, loaded)
	_, loaded = s.UnreadCount()
	require.False(t, loaded)
	_, ok := s.Settings()
	require.False(t, ok)
}
