// Package watcher reconciles the REST task snapshot with the realtime
// stream. One watcher per mounted view: it owns the registry, the channel
// and the post-completion timers, and serializes every mutation behind one
// mutex so snapshot/stream races stay order-tolerant.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
	"github.com/zazzle-agent/taskwatch/internals/timeouts"
	"github.com/zazzle-agent/taskwatch/registry"
	"github.com/zazzle-agent/taskwatch/sdk"
	"github.com/zazzle-agent/taskwatch/stream"
)

const (
	// DefaultRefreshDelay debounces the authoritative product refetch after a
	// completion event. The backend persists the product asynchronously after
	// announcing completion, so this is a heuristic, not a consistency
	// guarantee: a write slower than the delay leaves the list stale until
	// the next refresh.
	DefaultRefreshDelay = time.Second

	// DefaultEvictDelay is the grace window a finished task stays visible
	// before leaving the registry.
	DefaultEvictDelay = 7 * time.Second
)

type Config struct {
	Client *sdk.Client
	Logger *slog.Logger

	// StreamURL overrides the websocket endpoint derived from the client.
	StreamURL string

	RefreshDelay time.Duration
	EvictDelay   time.Duration
}

// Snapshot is a point-in-time copy of the watcher state for rendering.
type Snapshot struct {
	Tasks    []registry.Entry
	Products []schemas.Product

	// StreamErr is the sticky advisory from the realtime channel. A set
	// value means no live updates; the rest of the view stays usable.
	StreamErr string
	// FetchErr is the latest REST failure, cleared by the next success.
	FetchErr string
}

type Watcher struct {
	client       *sdk.Client
	logger       *slog.Logger
	streamURL    string
	refreshDelay time.Duration
	evictDelay   time.Duration

	mu        sync.Mutex
	reg       *registry.Registry
	products  []schemas.Product
	channel   *stream.Channel
	timers    map[string][]*time.Timer
	streamErr string
	fetchErr  string
	stopped   bool

	updates chan struct{}
}

func New(cfg Config) *Watcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RefreshDelay <= 0 {
		cfg.RefreshDelay = DefaultRefreshDelay
	}
	if cfg.EvictDelay <= 0 {
		cfg.EvictDelay = DefaultEvictDelay
	}
	streamURL := cfg.StreamURL
	if streamURL == "" && cfg.Client != nil {
		streamURL = cfg.Client.StreamURL()
	}
	return &Watcher{
		client:       cfg.Client,
		logger:       cfg.Logger,
		streamURL:    streamURL,
		refreshDelay: cfg.RefreshDelay,
		evictDelay:   cfg.EvictDelay,
		reg:          registry.New(),
		timers:       make(map[string][]*time.Timer),
		updates:      make(chan struct{}, 1),
	}
}

// Run fetches the snapshot, dials the stream and folds events until ctx is
// cancelled. A failed dial degrades to the stale snapshot; there is no
// automatic redial within one Run.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.teardown()

	w.loadSnapshot(ctx)

	w.mu.Lock()
	var activeIDs []string
	for _, entry := range w.reg.ActiveSubset() {
		activeIDs = append(activeIDs, entry.TaskID)
	}
	w.mu.Unlock()

	channel, err := stream.Dial(ctx, w.streamURL, w.logger, activeIDs)
	if err != nil {
		w.logger.Warn("Stream dial failed, continuing without live updates", "error", err)
		w.mu.Lock()
		w.streamErr = err.Error()
		w.notifyLocked()
		w.mu.Unlock()
		<-ctx.Done()
		return nil
	}

	w.mu.Lock()
	w.channel = channel
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-channel.Events():
			if !ok {
				w.mu.Lock()
				w.streamErr = channel.Err()
				w.notifyLocked()
				w.mu.Unlock()
				<-ctx.Done()
				return nil
			}
			w.handleEvent(event)
		}
	}
}

// Cancel asks the backend to cancel the task and removes it from the view
// immediately, invalidating any pending refetch/evict timers. A backend 404
// still removes locally.
func (w *Watcher) Cancel(ctx context.Context, taskID string, taskType string) error {
	if err := w.client.CancelTask(ctx, taskID, taskType); err != nil && !errors.Is(err, sdk.ErrNotFound) {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopTimersLocked(taskID)
	w.reg.Remove(taskID)
	w.notifyLocked()
	return nil
}

func (w *Watcher) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	products := make([]schemas.Product, len(w.products))
	copy(products, w.products)
	return Snapshot{
		Tasks:     w.reg.Snapshot(),
		Products:  products,
		StreamErr: w.streamErr,
		FetchErr:  w.fetchErr,
	}
}

// Updates signals that Snapshot has new content. Notifications are coalesced.
func (w *Watcher) Updates() <-chan struct{} {
	return w.updates
}

func (w *Watcher) loadSnapshot(ctx context.Context) {
	tasks, err := w.client.Tasks(ctx)

	w.mu.Lock()
	if err != nil {
		w.fetchErr = err.Error()
	} else {
		w.fetchErr = ""
		for _, task := range registry.Dedupe(tasks) {
			w.reg.Upsert(task)
		}
	}
	w.notifyLocked()
	w.mu.Unlock()

	products, err := w.client.Products(ctx)
	w.mu.Lock()
	if err != nil {
		w.fetchErr = err.Error()
	} else {
		w.products = products
	}
	w.notifyLocked()
	w.mu.Unlock()
}

func (w *Watcher) handleEvent(event stream.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	switch event := event.(type) {
	case stream.TaskUpdate:
		if _, known := w.reg.Get(event.TaskID); !known {
			// Skeleton creation is for active updates racing the snapshot
			// fetch. A terminal patch for an unknown id is a late echo for a
			// task already cancelled or evicted; re-creating it would
			// resurrect a removed row.
			if event.Patch.Status != nil && event.Patch.Status.Terminal() {
				return
			}
		}
		w.reg.Apply(event.TaskID, event.Patch)
		if event.Patch.Status != nil {
			status := *event.Patch.Status
			if status == schemas.TaskStatusCompleted {
				w.reg.MarkCompleted(event.TaskID, time.Now())
				w.scheduleLocked(event.TaskID, true)
			} else if status.Terminal() {
				w.scheduleLocked(event.TaskID, false)
			}
		}

	case stream.TaskCreated:
		w.reg.Upsert(event.Task)
		if w.channel != nil {
			if err := w.channel.Subscribe(event.Task.TaskID); err != nil {
				w.logger.Warn("Subscribe for new task failed", "task_id", event.Task.TaskID, "error", err)
			}
		}
	}

	w.notifyLocked()
}

// scheduleLocked arms the post-terminal timers once per task: the product
// refetch (completed only) and the grace-window eviction.
func (w *Watcher) scheduleLocked(taskID string, refetch bool) {
	if _, armed := w.timers[taskID]; armed {
		return
	}
	var armedTimers []*time.Timer
	if refetch {
		armedTimers = append(armedTimers, time.AfterFunc(w.refreshDelay, w.refreshProducts))
	}
	armedTimers = append(armedTimers, time.AfterFunc(w.evictDelay, func() {
		w.evict(taskID)
	}))
	w.timers[taskID] = armedTimers
}

func (w *Watcher) refreshProducts() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondDefault)
	defer cancel()
	products, err := w.client.Products(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if err != nil {
		w.fetchErr = err.Error()
	} else {
		w.products = products
		w.fetchErr = ""
	}
	w.notifyLocked()
}

func (w *Watcher) evict(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.timers, taskID)
	if w.stopped {
		return
	}
	// No-op if the task was cancelled in the meantime.
	if w.reg.Remove(taskID) {
		w.notifyLocked()
	}
}

func (w *Watcher) stopTimersLocked(taskID string) {
	for _, timer := range w.timers[taskID] {
		timer.Stop()
	}
	delete(w.timers, taskID)
}

func (w *Watcher) teardown() {
	w.mu.Lock()
	w.stopped = true
	channel := w.channel
	w.channel = nil
	for taskID := range w.timers {
		w.stopTimersLocked(taskID)
	}
	w.mu.Unlock()
	if channel != nil {
		_ = channel.Close()
	}
}

func (w *Watcher) notifyLocked() {
	select {
	case w.updates <- struct{}{}:
	default:
	}
}
