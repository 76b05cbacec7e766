package schemas

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is one the backend never moves away from.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

func (s TaskStatus) Active() bool {
	return s == TaskStatusPending || s == TaskStatusInProgress
}

// Task is one unit of asynchronous backend work (e.g. a commissioned
// product generation). TaskID is stable and unique; every other field is
// owned by the backend and may arrive incrementally.
type Task struct {
	TaskID      string     `json:"task_id"`
	TaskType    string     `json:"task_type,omitempty"`
	Status      TaskStatus `json:"status,omitempty"`
	Progress    *float64   `json:"progress,omitempty"`
	Stage       string     `json:"stage,omitempty"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	CompletedAt string     `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	DonationID  int64      `json:"donation_id,omitempty"`
}

// TaskPatch is a partial task update as carried by a task_update envelope.
// Only non-nil fields are applied; absent fields keep their prior value.
type TaskPatch struct {
	Status      *TaskStatus `json:"status,omitempty"`
	Progress    *float64    `json:"progress,omitempty"`
	Stage       *string     `json:"stage,omitempty"`
	Message     *string     `json:"message,omitempty"`
	CreatedAt   *string     `json:"created_at,omitempty"`
	CompletedAt *string     `json:"completed_at,omitempty"`
	Error       *string     `json:"error,omitempty"`
	DonationID  *int64      `json:"donation_id,omitempty"`
}

func (p TaskPatch) Apply(t *Task) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Progress != nil {
		progress := *p.Progress
		t.Progress = &progress
	}
	if p.Stage != nil {
		t.Stage = *p.Stage
	}
	if p.Message != nil {
		t.Message = *p.Message
	}
	if p.CreatedAt != nil {
		t.CreatedAt = *p.CreatedAt
	}
	if p.CompletedAt != nil {
		t.CompletedAt = *p.CompletedAt
	}
	if p.Error != nil {
		t.Error = *p.Error
	}
	if p.DonationID != nil {
		t.DonationID = *p.DonationID
	}
}

// Merge folds the non-zero fields of other into t. Used when a full task
// record is re-delivered (snapshot fetch racing the stream, duplicate
// task_created frames); last delivery wins per field.
func (t *Task) Merge(other Task) {
	if other.TaskType != "" {
		t.TaskType = other.TaskType
	}
	if other.Status != "" {
		t.Status = other.Status
	}
	if other.Progress != nil {
		progress := *other.Progress
		t.Progress = &progress
	}
	if other.Stage != "" {
		t.Stage = other.Stage
	}
	if other.Message != "" {
		t.Message = other.Message
	}
	if other.CreatedAt != "" {
		t.CreatedAt = other.CreatedAt
	}
	if other.CompletedAt != "" {
		t.CompletedAt = other.CompletedAt
	}
	if other.Error != "" {
		t.Error = other.Error
	}
	if other.DonationID != 0 {
		t.DonationID = other.DonationID
	}
}
