// Package stream owns the lifecycle of one realtime connection to the
// backend's task event endpoint. One channel per mounted watcher; there is
// no automatic reconnect, the owner redials on the next run.
package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

const eventBuffer = 32

type Channel struct {
	conn   *websocket.Conn
	logger *slog.Logger
	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	errMsg string
	closed bool
}

// Dial opens the channel, sends the liveness ping and re-subscribes to every
// known active task. The backend does not remember subscriptions across
// connection instances, so the caller must pass the full active set on each
// (re)dial.
func Dial(ctx context.Context, rawURL string, logger *slog.Logger, activeTaskIDs []string) (*Channel, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c := &Channel{
		conn:   conn,
		logger: logger,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}

	if err := c.send(clientMessage{Type: kindPing}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	for _, taskID := range activeTaskIDs {
		if err := c.Subscribe(taskID); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	go c.readLoop()

	return c, nil
}

// Subscribe asks the server to push events for one task.
func (c *Channel) Subscribe(taskID string) error {
	return c.send(clientMessage{Type: kindSubscribe, TaskID: taskID})
}

// Events delivers decoded envelopes in arrival order. The channel is closed
// when the connection ends for any reason; Err explains why.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Err returns the advisory error message, empty while the channel is healthy
// or after a deliberate Close.
func (c *Channel) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Close tears the connection down. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Channel) send(msg clientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteJSON(msg)
}

func (c *Channel) readLoop() {
	defer close(c.events)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !c.closed {
				c.errMsg = err.Error()
			}
			c.mu.Unlock()
			return
		}

		event, err := DecodeEnvelope(raw)
		if err != nil {
			// Malformed frames are dropped; the channel stays open.
			c.logger.Warn("Dropping malformed stream message", "error", err)
			continue
		}
		// Close must be able to end the loop even when the owner has stopped
		// draining and the buffer is full.
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}
}
