package stomp_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"guardian-gateway/internal/stomp"
	"guardian-gateway/internal/stomp/stomptest"
)

func TestClient_ConnectSubscribeReceive(t *testing.T) {
	broker := stomptest.NewServer()
	defer broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := stomp.Dial(ctx, broker.WSURL(), stomp.ConnectOptions{
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	connects := broker.Connects()
	if len(connects) != 1 || connects[0].Header.Get("Authorization") != "Bearer tok" {
		t.Fatalf("unexpected CONNECT frames %+v", connects)
	}

	got := make(chan stomp.Message, 1)
	sub, err := c.Subscribe("/topic/user/2/notifications", func(m stomp.Message) { got <- m })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !broker.WaitFor(func() bool { return broker.Subscribers("/topic/user/2/notifications") == 1 }, 2*time.Second) {
		t.Fatalf("subscription never reached broker")
	}

	broker.Publish("/topic/user/2/notifications", []byte(`{"payload":{"id":1}}`))
	select {
	case m := <-got:
		if string(m.Body) != `{"payload":{"id":1}}` || m.Subscription != sub.ID() {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if n := broker.Subscribers("/topic/user/2/notifications"); n != 0 {
		t.Fatalf("expected unsubscribe acknowledged before return, got %d", n)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("second Unsubscribe: %v", err)
	}
}

func TestClient_LargeBodySpansMessages(t *testing.T) {
	broker := stomptest.NewServer()
	defer broker.Close()

	c, err := stomp.Dial(context.Background(), broker.WSURL(), stomp.ConnectOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	got := make(chan []byte, 1)
	if _, err := c.Subscribe("/topic/big", func(m stomp.Message) { got <- m.Body }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !broker.WaitFor(func() bool { return broker.Subscribers("/topic/big") == 1 }, 2*time.Second) {
		t.Fatalf("subscription never reached broker")
	}

	body := []byte(`{"payload":{"id":1,"message":"` + strings.Repeat("x", 20000) + `"}}`)
	broker.Publish("/topic/big", body)
	select {
	case b := <-got:
		if string(b) != string(body) {
			t.Fatalf("body mangled: got %d bytes, want %d", len(b), len(body))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
}

func TestClient_ConnectRejected(t *testing.T) {
	broker := stomptest.NewServer()
	defer broker.Close()
	broker.Reject("bad token")

	_, err := stomp.Dial(context.Background(), broker.WSURL(), stomp.ConnectOptions{})
	var serverErr *stomp.ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "bad token" {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestClient_DoneOnServerDrop(t *testing.T) {
	broker := stomptest.NewServer()
	defer broker.Close()

	c, err := stomp.Dial(context.Background(), broker.WSURL(), stomp.ConnectOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	broker.DropAll()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Done after server drop")
	}
	if c.Err() == nil {
		t.Fatalf("expected a connection error")
	}
	if _, err := c.Subscribe("/topic/x", func(stomp.Message) {}); !errors.Is(err, stomp.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	broker := stomptest.NewServer()
	defer broker.Close()

	c, err := stomp.Dial(context.Background(), broker.WSURL(), stomp.ConnectOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if c.Err() != nil {
		t.Fatalf("expected nil Err after local close, got %v", c.Err())
	}
}
