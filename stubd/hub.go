package stubd

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

// hub fans task events out to connected stream clients, honoring the
// documented protocol: clients send ping and per-task subscribe messages,
// the server pushes task_update frames to subscribers and task_created
// frames to everyone.
type hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*hubConn]struct{}
}

type hubConn struct {
	conn *websocket.Conn

	mu   sync.Mutex
	subs map[string]struct{}
}

type serverEnvelope struct {
	Type     string `json:"type"`
	TaskID   string `json:"task_id,omitempty"`
	Data     any    `json:"data,omitempty"`
	TaskInfo any    `json:"task_info,omitempty"`
}

type hubClientMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id,omitempty"`
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*hubConn]struct{}),
	}
}

func (h *hub) HandlerStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Stream upgrade failed", "error", err)
		return
	}

	hc := &hubConn{
		conn: conn,
		subs: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.conns[hc] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, hc)
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg hubClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Warn("Dropping malformed client message", "error", err)
			continue
		}
		switch msg.Type {
		case "ping":
			// Liveness only, nothing to answer.
		case "subscribe":
			if msg.TaskID != "" {
				hc.mu.Lock()
				hc.subs[msg.TaskID] = struct{}{}
				hc.mu.Unlock()
			}
		default:
			h.logger.Debug("Ignoring unknown client message", "type", msg.Type)
		}
	}
}

// BroadcastTaskUpdate pushes a partial update to every client subscribed to
// the task.
func (h *hub) BroadcastTaskUpdate(taskID string, patch schemas.TaskPatch) {
	envelope := serverEnvelope{Type: "task_update", TaskID: taskID, Data: patch}
	h.mu.Lock()
	targets := make([]*hubConn, 0, len(h.conns))
	for hc := range h.conns {
		hc.mu.Lock()
		_, subscribed := hc.subs[taskID]
		hc.mu.Unlock()
		if subscribed {
			targets = append(targets, hc)
		}
	}
	h.mu.Unlock()

	for _, hc := range targets {
		h.write(hc, envelope)
	}
}

// BroadcastTaskCreated announces a new task to every connected client.
func (h *hub) BroadcastTaskCreated(task schemas.Task) {
	envelope := serverEnvelope{Type: "task_created", TaskInfo: task}
	h.mu.Lock()
	targets := make([]*hubConn, 0, len(h.conns))
	for hc := range h.conns {
		targets = append(targets, hc)
	}
	h.mu.Unlock()

	for _, hc := range targets {
		h.write(hc, envelope)
	}
}

func (h *hub) write(hc *hubConn, envelope serverEnvelope) {
	hc.mu.Lock()
	err := hc.conn.WriteJSON(envelope)
	hc.mu.Unlock()
	if err != nil {
		h.logger.Debug("Stream write failed", "error", err)
	}
}
