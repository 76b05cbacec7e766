package schemas

import "testing"

func TestTaskStatusClassification(t *testing.T) {
	for _, status := range []TaskStatus{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
		if !status.Terminal() || status.Active() {
			t.Errorf("%s misclassified", status)
		}
	}
	for _, status := range []TaskStatus{TaskStatusPending, TaskStatusInProgress} {
		if status.Terminal() || !status.Active() {
			t.Errorf("%s misclassified", status)
		}
	}
}

func TestPatchApplyLeavesAbsentFields(t *testing.T) {
	progress := 45.0
	task := Task{
		TaskID:     "t1",
		Status:     TaskStatusInProgress,
		Progress:   &progress,
		Stage:      "generating_image",
		DonationID: 7,
	}

	status := TaskStatusCompleted
	completedAt := "2026-08-31T12:00:00Z"
	TaskPatch{Status: &status, CompletedAt: &completedAt}.Apply(&task)

	if task.Status != TaskStatusCompleted || task.CompletedAt != completedAt {
		t.Fatalf("patched fields not applied: %+v", task)
	}
	if task.Stage != "generating_image" || task.DonationID != 7 {
		t.Fatalf("absent fields overwritten: %+v", task)
	}
	if task.Progress == nil || *task.Progress != 45.0 {
		t.Fatalf("progress changed: %v", task.Progress)
	}
}

func TestMergeSkipsZeroFields(t *testing.T) {
	task := Task{
		TaskID:    "t1",
		Status:    TaskStatusCompleted,
		Message:   "Product created",
		CreatedAt: "2026-08-31T11:00:00Z",
	}

	// A stale snapshot record with fewer fields must not blank anything.
	task.Merge(Task{TaskID: "t1", Status: TaskStatusInProgress, DonationID: 3})

	if task.Status != TaskStatusInProgress {
		t.Errorf("status = %s", task.Status)
	}
	if task.Message != "Product created" || task.CreatedAt == "" {
		t.Fatalf("zero fields clobbered: %+v", task)
	}
	if task.DonationID != 3 {
		t.Errorf("donation_id = %d", task.DonationID)
	}
}
