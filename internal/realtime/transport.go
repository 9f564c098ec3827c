// Package realtime keeps the STOMP push channel connected for the current
// session and routes notification pushes into the merger.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"guardian-gateway/internal/stomp"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 5 * time.Second
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

var ErrTransportClosed = errors.New("realtime: transport closed")

type TokenSource interface {
	AccessToken() string
}

type DialFunc func(ctx context.Context, url string, opts stomp.ConnectOptions) (*stomp.Client, error)

type Recorder interface {
	RecordRealtimeState(state string)
	RecordReconnectAttempt()
}

type TransportOptions struct {
	URL        string
	Tokens     TokenSource
	MaxRetries int
	RetryDelay time.Duration
	HeartBeat  time.Duration
	Dial       DialFunc
	Recorder   Recorder
	Logger     *slog.Logger
}

// Transport owns at most one STOMP connection. After a loss it redials with
// a fixed delay up to MaxRetries times, then stays down until Reconnect.
type Transport struct {
	url        string
	tokens     TokenSource
	maxRetries int
	retryDelay time.Duration
	heartBeat  time.Duration
	dial       DialFunc
	recorder   Recorder
	logger     *slog.Logger

	mu        sync.Mutex
	client    *stomp.Client
	state     State
	gen       uint64
	cancel    context.CancelFunc
	closed    bool
	nextID    int
	listeners map[int]func(State)
	wg        sync.WaitGroup
}

func NewTransport(opts TransportOptions) *Transport {
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	dial := opts.Dial
	if dial == nil {
		dial = stomp.Dial
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		url:        opts.URL,
		tokens:     opts.Tokens,
		maxRetries: maxRetries,
		retryDelay: delay,
		heartBeat:  opts.HeartBeat,
		dial:       dial,
		recorder:   opts.Recorder,
		logger:     logger,
		state:      StateDisconnected,
		listeners:  make(map[int]func(State)),
	}
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Client returns the live connection, or nil when not connected.
func (t *Transport) Client() *stomp.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client
}

// OnState registers fn for state changes. fn runs outside the transport lock.
func (t *Transport) OnState(fn func(State)) (cancel func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// Reconnect drops any current connection and starts a fresh dial loop with a
// full retry budget.
func (t *Transport) Reconnect() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	old := t.stopLocked()
	t.gen++
	gen := t.gen
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	go func() {
		defer t.wg.Done()
		t.run(ctx, gen)
	}()
	return nil
}

// Disconnect closes the current connection without retrying. The transport
// stays usable.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	old := t.stopLocked()
	t.gen++
	t.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	t.setState(t.currentGen(), StateDisconnected)
}

// Close disconnects for good and waits for the dial loop to exit.
func (t *Transport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Disconnect()
	t.wg.Wait()
}

func (t *Transport) stopLocked() *stomp.Client {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	old := t.client
	t.client = nil
	return old
}

func (t *Transport) currentGen() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

func (t *Transport) run(ctx context.Context, gen uint64) {
	attempts := 0
	for {
		token := ""
		if t.tokens != nil {
			token = t.tokens.AccessToken()
		}
		if token == "" {
			t.setState(gen, StateDisconnected)
			return
		}

		t.setState(gen, StateConnecting)
		c, err := t.dial(ctx, t.url, stomp.ConnectOptions{
			Headers:   map[string]string{"Authorization": "Bearer " + token},
			HeartBeat: t.heartBeat,
			Logger:    t.logger,
		})
		if err == nil {
			if !t.attach(gen, c) {
				_ = c.Close()
				return
			}
			attempts = 0
			t.logger.Info("realtime connected", slog.String("url", t.url))
			t.setState(gen, StateConnected)

			select {
			case <-ctx.Done():
				return
			case <-c.Done():
			}
			t.detach(gen, c)
			_ = c.Close()
			if ctx.Err() != nil {
				return
			}
			attrs := []any{}
			if cerr := c.Err(); cerr != nil {
				attrs = append(attrs, slog.String("error", cerr.Error()))
			}
			t.logger.Warn("realtime connection lost", attrs...)
			t.setState(gen, StateDisconnected)
		} else {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("realtime connect failed", slog.String("error", err.Error()))
		}

		if attempts >= t.maxRetries {
			t.logger.Warn("realtime giving up until reconnect is requested", slog.Int("attempts", attempts))
			t.setState(gen, StateDisconnected)
			return
		}
		attempts++
		if t.recorder != nil {
			t.recorder.RecordReconnectAttempt()
		}

		timer := time.NewTimer(t.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *Transport) attach(gen uint64, c *stomp.Client) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}
	t.client = c
	return true
}

func (t *Transport) detach(gen uint64, c *stomp.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen == t.gen && t.client == c {
		t.client = nil
	}
}

// setState ignores updates from superseded dial loops.
func (t *Transport) setState(gen uint64, s State) {
	t.mu.Lock()
	if gen != t.gen || t.state == s {
		t.mu.Unlock()
		return
	}
	t.state = s
	fns := make([]func(State), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	if t.recorder != nil {
		t.recorder.RecordRealtimeState(string(s))
	}
	for _, fn := range fns {
		fn(s)
	}
}
