package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

// Envelope kinds on the wire. general_update is a backward-compatible
// wrapper the backend still emits around task_created.
const (
	kindPing          = "ping"
	kindSubscribe     = "subscribe"
	kindTaskUpdate    = "task_update"
	kindTaskCreated   = "task_created"
	kindGeneralUpdate = "general_update"
)

// Event is the decoded form of a server envelope.
type Event interface {
	event()
}

// TaskUpdate carries a partial field set for one task.
type TaskUpdate struct {
	TaskID string
	Patch  schemas.TaskPatch
}

// TaskCreated carries a full task record.
type TaskCreated struct {
	Task schemas.Task
}

func (TaskUpdate) event()  {}
func (TaskCreated) event() {}

type envelope struct {
	Type     string          `json:"type"`
	TaskID   string          `json:"task_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	TaskInfo json.RawMessage `json:"task_info,omitempty"`
}

type clientMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id,omitempty"`
}

var errUnknownEnvelope = errors.New("unknown envelope type")

// DecodeEnvelope parses one server frame into an Event. A decode failure is
// the caller's cue to log and drop the frame; it never tears down the channel.
func DecodeEnvelope(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return decodeEnvelope(env, false)
}

func decodeEnvelope(env envelope, nested bool) (Event, error) {
	switch env.Type {
	case kindTaskUpdate:
		if env.TaskID == "" {
			return nil, errors.New("task_update without task_id")
		}
		var patch schemas.TaskPatch
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &patch); err != nil {
				return nil, fmt.Errorf("decode task_update data: %w", err)
			}
		}
		return TaskUpdate{TaskID: env.TaskID, Patch: patch}, nil

	case kindTaskCreated:
		var task schemas.Task
		if len(env.TaskInfo) == 0 {
			return nil, errors.New("task_created without task_info")
		}
		if err := json.Unmarshal(env.TaskInfo, &task); err != nil {
			return nil, fmt.Errorf("decode task_created task_info: %w", err)
		}
		if task.TaskID == "" {
			return nil, errors.New("task_created without task_id")
		}
		return TaskCreated{Task: task}, nil

	case kindGeneralUpdate:
		if nested {
			return nil, errors.New("general_update nested inside general_update")
		}
		var inner envelope
		if err := json.Unmarshal(env.Data, &inner); err != nil {
			return nil, fmt.Errorf("decode general_update data: %w", err)
		}
		return decodeEnvelope(inner, true)

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEnvelope, env.Type)
	}
}
