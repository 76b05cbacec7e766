// Package registry holds the client-side view of backend tasks, keyed by
// task id with insert-or-merge semantics. Merges are field-wise and
// last-write-wins per field, so re-delivered or out-of-order events that
// carry subsets of the true state cannot corrupt it.
package registry

import (
	"time"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

// Entry is a registered task plus presentation-only completion markers.
// JustCompleted and CompletedLocal drive the fade-out grace window and are
// never part of the wire contract.
type Entry struct {
	schemas.Task
	JustCompleted  bool
	CompletedLocal time.Time
}

// Registry is NOT safe for concurrent use. It is owned by a single watcher
// instance which serializes all mutation.
type Registry struct {
	order   []string
	entries map[string]*Entry
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Get returns a copy of the entry, if present.
func (r *Registry) Get(taskID string) (Entry, bool) {
	entry, ok := r.entries[taskID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Upsert inserts the task if absent, otherwise folds its non-zero fields
// into the existing entry. Idempotent under retransmission.
func (r *Registry) Upsert(task schemas.Task) Entry {
	if task.TaskID == "" {
		return Entry{}
	}
	entry, ok := r.entries[task.TaskID]
	if !ok {
		entry = &Entry{Task: task}
		r.entries[task.TaskID] = entry
		r.order = append(r.order, task.TaskID)
		return *entry
	}
	entry.Task.Merge(task)
	return *entry
}

// Apply merges a partial update into the entry for taskID, creating a
// skeleton entry when the update races ahead of the snapshot fetch.
func (r *Registry) Apply(taskID string, patch schemas.TaskPatch) Entry {
	entry, ok := r.entries[taskID]
	if !ok {
		entry = &Entry{Task: schemas.Task{TaskID: taskID}}
		r.entries[taskID] = entry
		r.order = append(r.order, taskID)
	}
	patch.Apply(&entry.Task)
	return *entry
}

// MarkCompleted stamps the presentation-only completion markers.
func (r *Registry) MarkCompleted(taskID string, at time.Time) bool {
	entry, ok := r.entries[taskID]
	if !ok {
		return false
	}
	entry.JustCompleted = true
	entry.CompletedLocal = at
	return true
}

// Remove evicts an entry. Safe to call for ids already gone.
func (r *Registry) Remove(taskID string) bool {
	if _, ok := r.entries[taskID]; !ok {
		return false
	}
	delete(r.entries, taskID)
	for i, id := range r.order {
		if id == taskID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// ActiveSubset returns tasks still pending or in progress; these are the
// ones eligible for stream subscription.
func (r *Registry) ActiveSubset() []Entry {
	var active []Entry
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.Status.Active() {
			active = append(active, *entry)
		}
	}
	return active
}

// Snapshot returns all entries in insertion order.
func (r *Registry) Snapshot() []Entry {
	snapshot := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, *r.entries[id])
	}
	return snapshot
}

// Dedupe collapses a sequence with possibly repeated task ids into one merged
// record per id, later entries winning on overlapping fields. Order of first
// appearance is preserved.
func Dedupe(tasks []schemas.Task) []schemas.Task {
	merged := make(map[string]*schemas.Task, len(tasks))
	var order []string
	for _, task := range tasks {
		if task.TaskID == "" {
			continue
		}
		if existing, ok := merged[task.TaskID]; ok {
			existing.Merge(task)
			continue
		}
		copied := task
		merged[task.TaskID] = &copied
		order = append(order, task.TaskID)
	}
	result := make([]schemas.Task, 0, len(order))
	for _, id := range order {
		result = append(result, *merged[id])
	}
	return result
}
