package stomp

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxPayload   int64         = 1000000
	writeTimeout time.Duration = 10 * time.Second
)

// Conn presents a WebSocket as the byte stream a STOMP session runs over.
// Each Write goes out as one text message and reads run across message
// boundaries.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	r       io.Reader

	closing  atomic.Bool
	doneOnce sync.Once
	done     chan struct{}
	errMu    sync.Mutex
	err      error
}

func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxPayload)
	return &Conn{ws: ws, done: make(chan struct{})}
}

// Read must only be called from one goroutine at a time.
func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				c.finish(err)
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			c.finish(err)
		}
		return n, err
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return 0, err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close shuts the socket. Err stays nil when the close was local.
func (c *Conn) Close() error {
	c.closing.Store(true)
	err := c.ws.Close()
	c.finish(nil)
	return err
}

// Done is closed once the socket is gone.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why the socket ended, or nil after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) finish(err error) {
	c.doneOnce.Do(func() {
		if c.closing.Load() {
			err = nil
		}
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	})
}
