package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type testStreamServer struct {
	*httptest.Server
	received chan clientMessage
	send     chan []byte
}

func newTestStreamServer(t *testing.T) *testStreamServer {
	t.Helper()
	ts := &testStreamServer{
		received: make(chan clientMessage, 16),
		send:     make(chan []byte, 16),
	}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		go func() {
			for raw := range ts.send {
				if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
					return
				}
			}
			_ = conn.Close()
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			ts.received <- msg
		}
	}))
	return ts
}

func (ts *testStreamServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testStreamServer) expectMessage(t *testing.T) clientMessage {
	t.Helper()
	select {
	case msg := <-ts.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for client message")
		return clientMessage{}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDialPingsAndResubscribes(t *testing.T) {
	server := newTestStreamServer(t)
	defer server.Close()
	defer close(server.send)

	channel, err := Dial(context.Background(), server.wsURL(), discardLogger(), []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer channel.Close()

	if msg := server.expectMessage(t); msg.Type != "ping" {
		t.Fatalf("expected ping first, got %q", msg.Type)
	}
	for _, want := range []string{"t1", "t2"} {
		msg := server.expectMessage(t)
		if msg.Type != "subscribe" || msg.TaskID != want {
			t.Fatalf("expected subscribe %s, got %+v", want, msg)
		}
	}
}

func TestChannelDeliversDecodedEvents(t *testing.T) {
	server := newTestStreamServer(t)
	defer server.Close()
	defer close(server.send)

	channel, err := Dial(context.Background(), server.wsURL(), discardLogger(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer channel.Close()

	server.send <- []byte(`{"type":"task_update","task_id":"t1","data":{"status":"in_progress"}}`)

	select {
	case event := <-channel.Events():
		update, ok := event.(TaskUpdate)
		if !ok {
			t.Fatalf("expected TaskUpdate, got %T", event)
		}
		if update.TaskID != "t1" {
			t.Fatalf("unexpected task id %q", update.TaskID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestChannelDropsMalformedAndStaysOpen(t *testing.T) {
	server := newTestStreamServer(t)
	defer server.Close()
	defer close(server.send)

	channel, err := Dial(context.Background(), server.wsURL(), discardLogger(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer channel.Close()

	server.send <- []byte(`{"type":"mystery"}`)
	server.send <- []byte(`{"type":"task_created","task_info":{"task_id":"t7","status":"pending"}}`)

	select {
	case event := <-channel.Events():
		created, ok := event.(TaskCreated)
		if !ok {
			t.Fatalf("expected TaskCreated after dropped frame, got %T", event)
		}
		if created.Task.TaskID != "t7" {
			t.Fatalf("unexpected task id %q", created.Task.TaskID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	if channel.Err() != "" {
		t.Fatalf("expected no advisory error, got %q", channel.Err())
	}
}

func TestCloseEndsEventStreamWithoutAdvisory(t *testing.T) {
	server := newTestStreamServer(t)
	defer server.Close()
	defer close(server.send)

	channel, err := Dial(context.Background(), server.wsURL(), discardLogger(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := channel.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case _, ok := <-channel.Events():
		if ok {
			t.Fatalf("expected closed events channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for events channel close")
	}
	if channel.Err() != "" {
		t.Fatalf("deliberate close should not set advisory error, got %q", channel.Err())
	}
}

func TestCloseUnblocksReadLoopWithFullBuffer(t *testing.T) {
	server := newTestStreamServer(t)
	defer server.Close()
	defer close(server.send)

	channel, err := Dial(context.Background(), server.wsURL(), discardLogger(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	// Nobody drains Events, so the buffer fills and the read loop ends up
	// parked on a send.
	for range eventBuffer + 8 {
		server.send <- []byte(`{"type":"task_update","task_id":"t1","data":{"status":"in_progress"}}`)
	}
	// Give the read loop time to fill the buffer and block.
	time.Sleep(100 * time.Millisecond)

	if err := channel.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-channel.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("read loop still parked after Close")
		}
	}
}

func TestServerDropSetsAdvisory(t *testing.T) {
	server := newTestStreamServer(t)
	defer server.Close()

	channel, err := Dial(context.Background(), server.wsURL(), discardLogger(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer channel.Close()

	close(server.send) // server closes the connection

	select {
	case _, ok := <-channel.Events():
		if ok {
			t.Fatalf("expected closed events channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for events channel close")
	}
	if channel.Err() == "" {
		t.Fatalf("expected advisory error after server drop")
	}
}
