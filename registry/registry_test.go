package registry

import (
	"testing"
	"time"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

func strPtr(s string) *string                            { return &s }
func floatPtr(f float64) *float64                        { return &f }
func statusPtr(s schemas.TaskStatus) *schemas.TaskStatus { return &s }

func TestUpsertMergesFieldWise(t *testing.T) {
	reg := New()
	reg.Upsert(schemas.Task{TaskID: "t1", Status: schemas.TaskStatusPending, DonationID: 7})
	reg.Upsert(schemas.Task{TaskID: "t1", Status: schemas.TaskStatusInProgress, Stage: "generating_image"})

	if reg.Len() != 1 {
		t.Fatalf("expected one entry, got %d", reg.Len())
	}
	entry, ok := reg.Get("t1")
	if !ok {
		t.Fatalf("t1 missing")
	}
	if entry.Status != schemas.TaskStatusInProgress {
		t.Fatalf("expected in_progress, got %s", entry.Status)
	}
	if entry.DonationID != 7 {
		t.Fatalf("expected donation id preserved, got %d", entry.DonationID)
	}
	if entry.Stage != "generating_image" {
		t.Fatalf("expected stage merged, got %q", entry.Stage)
	}
}

func TestApplyDisjointFieldsOrderIndependent(t *testing.T) {
	patchA := schemas.TaskPatch{Progress: floatPtr(40), Stage: strPtr("scanning_reddit")}
	patchB := schemas.TaskPatch{Message: strPtr("working"), Status: statusPtr(schemas.TaskStatusInProgress)}

	first := New()
	first.Upsert(schemas.Task{TaskID: "t1"})
	first.Apply("t1", patchA)
	first.Apply("t1", patchB)

	second := New()
	second.Upsert(schemas.Task{TaskID: "t1"})
	second.Apply("t1", patchB)
	second.Apply("t1", patchA)

	a, _ := first.Get("t1")
	b, _ := second.Get("t1")
	if a.Task.Stage != b.Task.Stage || a.Task.Message != b.Task.Message || a.Task.Status != b.Task.Status {
		t.Fatalf("disjoint patches not order independent: %+v vs %+v", a.Task, b.Task)
	}
	if *a.Progress != 40 || a.Message != "working" {
		t.Fatalf("unexpected merged state: %+v", a.Task)
	}
}

func TestApplyCreatesSkeletonBeforeSnapshot(t *testing.T) {
	reg := New()
	reg.Apply("t9", schemas.TaskPatch{Status: statusPtr(schemas.TaskStatusInProgress)})
	entry, ok := reg.Get("t9")
	if !ok {
		t.Fatalf("expected skeleton entry for early event")
	}
	if entry.Status != schemas.TaskStatusInProgress {
		t.Fatalf("expected in_progress, got %s", entry.Status)
	}
}

func TestDedupeLaterEntriesWin(t *testing.T) {
	merged := Dedupe([]schemas.Task{
		{TaskID: "1", Status: schemas.TaskStatusPending},
		{TaskID: "1", Status: schemas.TaskStatusInProgress},
	})
	if len(merged) != 1 {
		t.Fatalf("expected one task, got %d", len(merged))
	}
	if merged[0].Status != schemas.TaskStatusInProgress {
		t.Fatalf("expected later status to win, got %s", merged[0].Status)
	}
}

func TestDedupePreservesFirstSeenOrder(t *testing.T) {
	merged := Dedupe([]schemas.Task{
		{TaskID: "a", Status: schemas.TaskStatusPending},
		{TaskID: "b", Status: schemas.TaskStatusPending},
		{TaskID: "a", Message: "again"},
	})
	if len(merged) != 2 {
		t.Fatalf("expected two tasks, got %d", len(merged))
	}
	if merged[0].TaskID != "a" || merged[1].TaskID != "b" {
		t.Fatalf("unexpected order: %s, %s", merged[0].TaskID, merged[1].TaskID)
	}
	if merged[0].Message != "again" {
		t.Fatalf("expected message merged into first-seen entry")
	}
}

func TestActiveSubset(t *testing.T) {
	reg := New()
	reg.Upsert(schemas.Task{TaskID: "p", Status: schemas.TaskStatusPending})
	reg.Upsert(schemas.Task{TaskID: "r", Status: schemas.TaskStatusInProgress})
	reg.Upsert(schemas.Task{TaskID: "c", Status: schemas.TaskStatusCompleted})
	reg.Upsert(schemas.Task{TaskID: "f", Status: schemas.TaskStatusFailed})

	active := reg.ActiveSubset()
	if len(active) != 2 {
		t.Fatalf("expected two active tasks, got %d", len(active))
	}
	if active[0].TaskID != "p" || active[1].TaskID != "r" {
		t.Fatalf("unexpected active set: %+v", active)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := New()
	reg.Upsert(schemas.Task{TaskID: "t1", Status: schemas.TaskStatusPending})
	if !reg.Remove("t1") {
		t.Fatalf("expected removal of existing entry")
	}
	if reg.Remove("t1") {
		t.Fatalf("expected second removal to be a no-op")
	}
	if len(reg.Snapshot()) != 0 {
		t.Fatalf("expected empty snapshot")
	}
}

func TestMarkCompleted(t *testing.T) {
	reg := New()
	reg.Upsert(schemas.Task{TaskID: "t1", Status: schemas.TaskStatusCompleted})
	at := time.Now()
	if !reg.MarkCompleted("t1", at) {
		t.Fatalf("expected mark to succeed")
	}
	entry, _ := reg.Get("t1")
	if !entry.JustCompleted || !entry.CompletedLocal.Equal(at) {
		t.Fatalf("completion markers not set: %+v", entry)
	}
	if reg.MarkCompleted("missing", at) {
		t.Fatalf("expected mark on missing id to fail")
	}
}
