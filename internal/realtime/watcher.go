package realtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"guardian-gateway/internal/notify"
	"guardian-gateway/internal/session"
	"guardian-gateway/internal/stomp"
)

// NotificationDestination is the per-user push topic.
func NotificationDestination(userKey string) string {
	return fmt.Sprintf("/topic/user/%s/notifications", userKey)
}

type WatcherOptions struct {
	Session      *session.Store
	Transport    *Transport
	Cache        notify.Cache
	Publisher    notify.Publisher
	Recorder     notify.Recorder
	SeenCapacity int
	// OnUserChange runs after the previous user's merger is retired and
	// before the new one can write, e.g. to reset the cache.
	OnUserChange func()
	Logger       *slog.Logger
}

// Watcher keeps exactly one notification subscription alive while the session
// has an identity and the transport is connected.
type Watcher struct {
	session   *session.Store
	transport *Transport
	opts      WatcherOptions
	logger    *slog.Logger

	mu        sync.Mutex
	token     string
	merger    *notify.Merger
	sub       *stomp.Subscription
	subClient *stomp.Client
	subUser   string
	stops     []func()
	started   bool
}

func NewWatcher(opts WatcherOptions) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		session:   opts.Session,
		transport: opts.Transport,
		opts:      opts,
		logger:    logger,
	}
}

// Start hooks into session and transport changes and connects when the
// session already holds a token.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.stops = append(w.stops,
		w.transport.OnState(w.onState),
		w.session.Watch(w.onSession),
	)
	w.mu.Unlock()

	w.onSession(w.session.Snapshot())
}

// Stop unsubscribes and detaches from the session. The transport is left to
// its owner.
func (w *Watcher) Stop() {
	w.mu.Lock()
	stops := w.stops
	w.stops = nil
	w.started = false
	w.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	w.unsubscribe()
}

// Merger returns the merger bound to the current identity, if any.
func (w *Watcher) Merger() *notify.Merger {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.merger
}

// onSession reads the newest snapshot under w.mu, so listeners running
// concurrently on different goroutines settle on the latest session.
func (w *Watcher) onSession(session.Snapshot) {
	w.mu.Lock()
	snap := w.session.Snapshot()
	key, token := "", ""
	if snap.HasToken() && snap.Identity != nil {
		key, token = snap.Identity.UserKey(), snap.Tokens.AccessToken
	}

	var stale *stomp.Subscription
	current := ""
	if w.merger != nil {
		current = w.merger.UserKey()
	}
	if key != current {
		if w.merger != nil {
			w.merger.Retire()
			w.merger = nil
		}
		stale = w.sub
		w.sub, w.subClient, w.subUser = nil, nil, ""
		if key != "" {
			m, err := w.newMerger(key)
			if err != nil {
				w.token = ""
				w.mu.Unlock()
				w.logger.Error("realtime: merger setup failed", slog.String("error", err.Error()))
				w.drop(stale)
				return
			}
			w.merger = m
		}
		if w.opts.OnUserChange != nil {
			w.opts.OnUserChange()
		}
	}
	changed := token != w.token
	w.token = token
	w.mu.Unlock()

	w.drop(stale)
	if key == "" {
		w.transport.Disconnect()
		return
	}
	if changed {
		if err := w.transport.Reconnect(); err != nil {
			w.logger.Warn("realtime: reconnect refused", slog.String("error", err.Error()))
		}
		return
	}
	w.sync()
}

// newMerger starts a fresh seen set; it lives as long as the identity does.
func (w *Watcher) newMerger(key string) (*notify.Merger, error) {
	return notify.NewMerger(notify.MergerOptions{
		UserKey:      key,
		Cache:        w.opts.Cache,
		Publisher:    w.opts.Publisher,
		Recorder:     w.opts.Recorder,
		Logger:       w.logger,
		SeenCapacity: w.opts.SeenCapacity,
	})
}

func (w *Watcher) onState(s State) {
	if s == StateConnected {
		w.sync()
		return
	}
	if s == StateDisconnected {
		w.mu.Lock()
		w.sub = nil
		w.subClient = nil
		w.subUser = ""
		w.mu.Unlock()
	}
}

func (w *Watcher) sync() {
	client := w.transport.Client()

	w.mu.Lock()
	merger := w.merger
	if client == nil || merger == nil {
		w.mu.Unlock()
		return
	}
	if w.sub != nil && w.subClient == client && w.subUser == merger.UserKey() {
		w.mu.Unlock()
		return
	}
	old := w.sub
	w.sub, w.subClient, w.subUser = nil, nil, ""
	w.mu.Unlock()

	if old != nil {
		_ = old.Unsubscribe()
	}

	dest := NotificationDestination(merger.UserKey())
	sub, err := client.Subscribe(dest, func(m stomp.Message) {
		merger.Handle(m.Body, time.Now())
	})
	if err != nil {
		w.logger.Warn("realtime: subscribe failed", slog.String("destination", dest), slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	if w.merger != merger || w.sub != nil {
		w.mu.Unlock()
		_ = sub.Unsubscribe()
		return
	}
	w.sub, w.subClient, w.subUser = sub, client, merger.UserKey()
	w.mu.Unlock()
	w.logger.Info("realtime subscribed", slog.String("destination", dest))
}

func (w *Watcher) unsubscribe() {
	w.mu.Lock()
	sub := w.sub
	w.sub, w.subClient, w.subUser = nil, nil, ""
	w.mu.Unlock()
	w.drop(sub)
}

func (w *Watcher) drop(sub *stomp.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		w.logger.Debug("realtime: unsubscribe failed", slog.String("destination", sub.Destination()), slog.String("error", err.Error()))
	}
}
