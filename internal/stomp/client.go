// Package stomp runs STOMP sessions over WebSocket: go-stomp speaks the
// protocol and Conn carries it over a gorilla/websocket connection.
package stomp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	gostomp "github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
)

const (
	connectTimeout     = 15 * time.Second
	disconnectTimeout  = 2 * time.Second
	unsubscribeTimeout = 5 * time.Second
)

var ErrClosed = errors.New("stomp: connection closed")

// Subprotocols offered on the WebSocket handshake.
var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// ServerError is an ERROR frame sent by the broker.
type ServerError struct {
	Message string
	Body    string
}

func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("stomp: server error: %s: %s", e.Message, e.Body)
	}
	return "stomp: server error: " + e.Message
}

type ConnectOptions struct {
	// Headers are sent on CONNECT, e.g. Authorization.
	Headers map[string]string
	Host    string
	// HeartBeat is the interval of outgoing heart-beats. Zero disables them.
	HeartBeat time.Duration
	Dialer    *websocket.Dialer
	Logger    *slog.Logger
}

type Message struct {
	Destination  string
	Subscription string
	MessageID    string
	Body         []byte
}

type Handler func(Message)

type Client struct {
	conn    *Conn
	session *gostomp.Conn
	logger  *slog.Logger

	closeOnce sync.Once
}

// Dial opens the WebSocket and completes the STOMP handshake.
func Dial(ctx context.Context, rawURL string, opts ConnectOptions) (*Client, error) {
	dialer := websocket.DefaultDialer
	if opts.Dialer != nil {
		dialer = opts.Dialer
	}
	d := *dialer
	d.Subprotocols = Subprotocols

	ws, resp, err := d.DialContext(ctx, rawURL, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("stomp: dial: %w", err)
	}
	conn := NewConn(ws)

	host := opts.Host
	if host == "" {
		if u, err := url.Parse(rawURL); err == nil {
			host = u.Hostname()
		}
	}
	connOpts := []func(*gostomp.Conn) error{
		gostomp.ConnOpt.Host(host),
		gostomp.ConnOpt.HeartBeat(opts.HeartBeat, 0),
	}
	for k, v := range opts.Headers {
		connOpts = append(connOpts, gostomp.ConnOpt.Header(k, v))
	}

	type result struct {
		session *gostomp.Conn
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := gostomp.Connect(conn, connOpts...)
		ch <- result{s, err}
	}()

	timer := time.NewTimer(connectTimeout)
	defer timer.Stop()
	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		_ = conn.Close()
		<-ch
		return nil, fmt.Errorf("stomp: connect: %w", ctx.Err())
	case <-timer.C:
		_ = conn.Close()
		<-ch
		return nil, errors.New("stomp: connect: timed out waiting for CONNECTED")
	}
	if r.err != nil {
		_ = conn.Close()
		return nil, connectError(r.err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, session: r.session, logger: logger}, nil
}

func connectError(err error) error {
	var se gostomp.Error
	if errors.As(err, &se) {
		return serverError(se)
	}
	var sep *gostomp.Error
	if errors.As(err, &sep) && sep != nil {
		return serverError(*sep)
	}
	return fmt.Errorf("stomp: connect: %w", err)
}

func serverError(e gostomp.Error) *ServerError {
	out := &ServerError{Message: e.Message}
	if e.Frame != nil {
		out.Body = string(e.Frame.Body)
		if msg := e.Frame.Header.Get(frame.Message); msg != "" {
			out.Message = msg
		}
	}
	return out
}

// Subscribe registers handler for destination. Handlers for one
// subscription run one message at a time.
func (c *Client) Subscribe(destination string, handler Handler) (*Subscription, error) {
	if c.closed() {
		return nil, ErrClosed
	}
	sub, err := c.session.Subscribe(destination, gostomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("stomp: subscribe %s: %w", destination, err)
	}
	s := &Subscription{client: c, sub: sub, destination: destination}
	go s.deliver(handler)
	return s, nil
}

func (c *Client) closed() bool {
	select {
	case <-c.conn.Done():
		return true
	default:
		return false
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.conn.Done() }

// Err reports why the connection ended. It is nil after a local Close.
func (c *Client) Err() error { return c.conn.Err() }

// Close sends DISCONNECT when the socket is still up and closes it.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if !c.closed() {
			c.conn.closing.Store(true)
			done := make(chan error, 1)
			go func() { done <- c.session.Disconnect() }()
			select {
			case err := <-done:
				if err != nil {
					c.logger.Debug("stomp: disconnect", slog.String("error", err.Error()))
				}
			case <-time.After(disconnectTimeout):
				c.logger.Debug("stomp: no DISCONNECT receipt")
			}
		}
		_ = c.conn.Close()
	})
	return nil
}

type Subscription struct {
	client      *Client
	sub         *gostomp.Subscription
	destination string
	stopped     atomic.Bool
	once        sync.Once
}

func (s *Subscription) ID() string          { return s.sub.Id() }
func (s *Subscription) Destination() string { return s.destination }

// Unsubscribe stops delivery at once and waits for the broker's receipt.
// Calling it again is a no-op.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.stopped.Store(true)
		done := make(chan error, 1)
		go func() { done <- s.sub.Unsubscribe() }()
		select {
		case err = <-done:
			if err != nil && s.client.closed() {
				err = nil
			}
		case <-s.client.Done():
		case <-time.After(unsubscribeTimeout):
			err = fmt.Errorf("stomp: unsubscribe %s: no receipt", s.destination)
		}
	})
	return err
}

// deliver drains the subscription until it or the connection ends.
func (s *Subscription) deliver(handler Handler) {
	done := s.client.Done()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-s.sub.C:
			if !ok {
				return
			}
			if msg.Err != nil {
				s.client.logger.Debug("stomp: subscription error", slog.String("destination", s.destination), slog.String("error", msg.Err.Error()))
				continue
			}
			if s.stopped.Load() {
				continue
			}
			m := Message{
				Destination:  msg.Destination,
				Subscription: s.sub.Id(),
				Body:         msg.Body,
			}
			if msg.Header != nil {
				m.MessageID = msg.Header.Get(frame.MessageId)
			}
			handler(m)
		}
	}
}
