// Package stomptest runs an in-process STOMP broker over WebSocket for tests.
package stomptest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"guardian-gateway/internal/stomp"
)

type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    map[*conn]struct{}
	connects []*frame.Frame
	reject   string
	notify   chan struct{}
}

type conn struct {
	raw    *stomp.Conn
	sendMu sync.Mutex
	writer *frame.Writer
	subs   map[string]string
}

func NewServer() *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:  func(r *http.Request) bool { return true },
			Subprotocols: stomp.Subprotocols[:1],
		},
		conns:  make(map[*conn]struct{}),
		notify: make(chan struct{}, 1),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// Reject makes every later CONNECT fail with an ERROR frame carrying msg.
// An empty msg accepts again.
func (s *Server) Reject(msg string) {
	s.mu.Lock()
	s.reject = msg
	s.mu.Unlock()
}

// Connects returns the CONNECT frames received so far.
func (s *Server) Connects() []*frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*frame.Frame(nil), s.connects...)
}

// Subscribers counts live subscriptions to destination.
func (s *Server) Subscribers(destination string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c := range s.conns {
		for _, d := range c.subs {
			if d == destination {
				n++
			}
		}
	}
	return n
}

// WaitFor polls cond until it holds or timeout passes.
func (s *Server) WaitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-s.notify:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Publish sends body to every subscription on destination and returns how
// many received it.
func (s *Server) Publish(destination string, body []byte) int {
	type target struct {
		c  *conn
		id string
	}
	s.mu.Lock()
	var targets []target
	for c := range s.conns {
		for id, d := range c.subs {
			if d == destination {
				targets = append(targets, target{c: c, id: id})
			}
		}
	}
	s.mu.Unlock()

	sent := 0
	for _, t := range targets {
		f := frame.New(frame.MESSAGE,
			frame.Subscription, t.id,
			frame.MessageId, uuid.NewString(),
			frame.Destination, destination,
			frame.ContentType, "application/json",
		)
		f.Body = body
		if t.c.write(f) == nil {
			sent++
		}
	}
	return sent
}

// DropAll closes every connection from the server side.
func (s *Server) DropAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.raw.Close()
	}
}

func (s *Server) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (c *conn) write(f *frame.Frame) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.writer.Write(f)
}

// receipt answers a frame that asked for one.
func (c *conn) receipt(f *frame.Frame) {
	if id, ok := f.Header.Contains(frame.Receipt); ok {
		_ = c.write(frame.New(frame.RECEIPT, frame.ReceiptId, id))
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	raw := stomp.NewConn(ws)
	c := &conn{raw: raw, writer: frame.NewWriter(raw), subs: make(map[string]string)}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		_ = raw.Close()
		s.signal()
	}()

	reader := frame.NewReader(raw)
	for {
		f, err := reader.Read()
		if err != nil {
			return
		}
		if f == nil {
			continue
		}
		if !s.handle(c, f) {
			return
		}
	}
}

func (s *Server) handle(c *conn, f *frame.Frame) bool {
	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		s.mu.Lock()
		s.connects = append(s.connects, f)
		reject := s.reject
		s.mu.Unlock()
		s.signal()
		if reject != "" {
			_ = c.write(frame.New(frame.ERROR, frame.Message, reject))
			return false
		}
		_ = c.write(frame.New(frame.CONNECTED, frame.Version, "1.2", frame.HeartBeat, "0,0"))
	case frame.SUBSCRIBE:
		s.mu.Lock()
		c.subs[f.Header.Get(frame.Id)] = f.Header.Get(frame.Destination)
		s.mu.Unlock()
		s.signal()
		c.receipt(f)
	case frame.UNSUBSCRIBE:
		s.mu.Lock()
		delete(c.subs, f.Header.Get(frame.Id))
		s.mu.Unlock()
		s.signal()
		c.receipt(f)
	case frame.DISCONNECT:
		c.receipt(f)
		return false
	}
	return true
}
