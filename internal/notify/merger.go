// Package notify applies pushed notifications to the query cache exactly once
// per id.
package notify

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"guardian-gateway/internal/model"
)

const DefaultSeenCapacity = 1000

type Outcome string

const (
	OutcomeMerged    Outcome = "merged"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeDropped   Outcome = "dropped"
)

// Cache is the slice of store.Store the merger writes to.
type Cache interface {
	MergeRecent(n model.Notification) []model.Notification
	IncrementUnread() (int64, bool)
	InvalidateNotificationList()
}

// Publisher forwards merged notifications to live UI connections.
type Publisher interface {
	PublishNotification(userKey string, n model.Notification, unread int64, unreadKnown bool)
}

type Recorder interface {
	RecordNotification(outcome string)
}

type MergerOptions struct {
	UserKey      string
	Cache        Cache
	Publisher    Publisher
	Recorder     Recorder
	Logger       *slog.Logger
	SeenCapacity int
}

type Merger struct {
	userKey   string
	cache     Cache
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger

	mu      sync.Mutex
	seen    *lru.Cache[int64, struct{}]
	retired bool
}

func NewMerger(opts MergerOptions) (*Merger, error) {
	capacity := opts.SeenCapacity
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	seen, err := lru.New[int64, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		userKey:   opts.UserKey,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logger:    logger,
		seen:      seen,
	}, nil
}

func (m *Merger) UserKey() string { return m.userKey }

// Handle applies one push body. Malformed bodies and ids already seen leave
// the cache untouched.
func (m *Merger) Handle(body []byte, receivedAt time.Time) (model.Notification, Outcome) {
	n, err := DecodePush(body, receivedAt)
	if err != nil {
		m.logger.Debug("notify: dropping push", slog.String("user", m.userKey), slog.String("error", err.Error()))
		m.record(OutcomeDropped)
		return model.Notification{}, OutcomeDropped
	}

	m.mu.Lock()
	if m.retired {
		m.mu.Unlock()
		return model.Notification{}, OutcomeDropped
	}
	if m.seen.Contains(n.ID) {
		m.mu.Unlock()
		m.record(OutcomeDuplicate)
		return n, OutcomeDuplicate
	}
	m.seen.Add(n.ID, struct{}{})
	m.cache.MergeRecent(n)
	unread, known := m.cache.IncrementUnread()
	m.cache.InvalidateNotificationList()
	m.mu.Unlock()

	m.record(OutcomeMerged)
	if m.publisher != nil {
		m.publisher.PublishNotification(m.userKey, n, unread, known)
	}
	return n, OutcomeMerged
}

// Retire stops the merger from writing to the cache. Once it returns, no
// Handle call touches the cache again.
func (m *Merger) Retire() {
	m.mu.Lock()
	m.retired = true
	m.mu.Unlock()
}

// Seen reports whether id was already applied.
func (m *Merger) Seen(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen.Contains(id)
}

func (m *Merger) record(o Outcome) {
	if m.recorder != nil {
		m.recorder.RecordNotification(string(o))
	}
}
