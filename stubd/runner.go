package stubd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

// runner simulates the product pipeline: it walks a commissioned task
// through its stages, broadcasting each step over the hub, and persists the
// generated product a beat after announcing completion. That lag reproduces
// the race window the client's delayed refetch is built around.
type runner struct {
	store  *store
	hub    *hub
	logger *slog.Logger

	stepInterval time.Duration
	persistLag   time.Duration
	subreddit    string
}

var pipelineStages = []struct {
	stage    string
	message  string
	progress float64
}{
	{"scanning_reddit", "Finding a trending post", 15},
	{"generating_image", "Generating the product image", 45},
	{"creating_product", "Creating the Zazzle product", 80},
}

func newRunner(store *store, hub *hub, logger *slog.Logger, stepInterval, persistLag time.Duration, subreddit string) *runner {
	if stepInterval <= 0 {
		stepInterval = 2 * time.Second
	}
	if persistLag <= 0 {
		persistLag = 500 * time.Millisecond
	}
	return &runner{
		store:        store,
		hub:          hub,
		logger:       logger,
		stepInterval: stepInterval,
		persistLag:   persistLag,
		subreddit:    subreddit,
	}
}

// Commission creates a pending task and drives it in the background.
func (r *runner) Commission(ctx context.Context, donationID int64) (*schemas.Task, error) {
	task := schemas.Task{
		TaskID:     uuid.NewString(),
		TaskType:   "commission",
		Status:     schemas.TaskStatusPending,
		Message:    "Queued",
		CreatedAt:  nowRFC3339(),
		DonationID: donationID,
	}
	if err := r.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	r.hub.BroadcastTaskCreated(task)

	go r.run(task)

	return &task, nil
}

func (r *runner) run(task schemas.Task) {
	ctx := context.Background()

	inProgress := schemas.TaskStatusInProgress
	for _, step := range pipelineStages {
		time.Sleep(r.stepInterval)
		if r.cancelled(ctx, task.TaskID) {
			return
		}
		progress := step.progress
		stage := step.stage
		message := step.message
		patch := schemas.TaskPatch{
			Status:   &inProgress,
			Progress: &progress,
			Stage:    &stage,
			Message:  &message,
		}
		r.applyAndBroadcast(ctx, task.TaskID, patch)
	}

	time.Sleep(r.stepInterval)
	if r.cancelled(ctx, task.TaskID) {
		return
	}

	completed := schemas.TaskStatusCompleted
	progress := 100.0
	message := "Product created"
	completedAt := nowRFC3339()
	r.applyAndBroadcast(ctx, task.TaskID, schemas.TaskPatch{
		Status:      &completed,
		Progress:    &progress,
		Message:     &message,
		CompletedAt: &completedAt,
	})

	// The real pipeline persists the product asynchronously after the
	// completion announcement.
	time.Sleep(r.persistLag)
	product := schemas.Product{
		ProductID:       uuid.NewString(),
		ThemeID:         task.TaskID,
		ImageURL:        fmt.Sprintf("https://img.example.com/%s.png", task.TaskID),
		ProductURL:      fmt.Sprintf("https://zazzle.example.com/p/%s", task.TaskID),
		RedditPostTitle: "Trending on r/" + r.subreddit,
		SubredditName:   r.subreddit,
		CreatedAt:       nowRFC3339(),
		DonationID:      task.DonationID,
	}
	if err := r.store.CreateProduct(ctx, product); err != nil {
		r.logger.Error("Failed to persist product", "task_id", task.TaskID, "error", err)
	}
}

func (r *runner) cancelled(ctx context.Context, taskID string) bool {
	current, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		r.logger.Error("Failed to read task", "task_id", taskID, "error", err)
		return true
	}
	return current.Status == schemas.TaskStatusCancelled
}

func (r *runner) applyAndBroadcast(ctx context.Context, taskID string, patch schemas.TaskPatch) {
	if err := r.store.ApplyPatch(ctx, taskID, patch); err != nil {
		r.logger.Error("Failed to update task", "task_id", taskID, "error", err)
		return
	}
	r.hub.BroadcastTaskUpdate(taskID, patch)
}
