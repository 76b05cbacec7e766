package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
	"github.com/zazzle-agent/taskwatch/sdk"
)

type fakeAPI struct {
	get    func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error)
	submit func(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error)

	submitCalls atomic.Int64
}

func (f *fakeAPI) Interaction(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
	return f.get(ctx, productID, mode)
}

func (f *fakeAPI) SubmitInteraction(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
	f.submitCalls.Add(1)
	return f.submit(ctx, productID, mode, opts)
}

func TestSubmitWhenNothingRecorded(t *testing.T) {
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			return nil, sdk.ErrNotFound
		},
		submit: func(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
			return &schemas.Interaction{ProductID: productID, Mode: mode, CommentID: "c1"}, nil
		},
	}
	g := New(api)

	record, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if record == nil || record.CommentID != "c1" {
		t.Fatalf("unexpected record %+v", record)
	}
	if got := api.submitCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one submit, got %d", got)
	}

	state := g.State("p1", schemas.InteractionModeComment)
	if state.Submitting || state.Interaction == nil || state.Err != "" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestExistingRecordSkipsSubmit(t *testing.T) {
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			return &schemas.Interaction{ProductID: productID, Mode: mode, CommentID: "already"}, nil
		},
	}
	g := New(api)

	record, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if record.CommentID != "already" {
		t.Fatalf("expected existing record, got %+v", record)
	}
	if got := api.submitCalls.Load(); got != 0 {
		t.Fatalf("expected zero submits, got %d", got)
	}
}

func TestAmbiguousCheckNeverSubmits(t *testing.T) {
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			return nil, errors.New("connection reset")
		},
	}
	g := New(api)

	_, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{})
	if err == nil {
		t.Fatalf("expected error from ambiguous check")
	}
	if got := api.submitCalls.Load(); got != 0 {
		t.Fatalf("expected zero submits after ambiguous check, got %d", got)
	}

	state := g.State("p1", schemas.InteractionModeComment)
	if state.Err == "" {
		t.Fatalf("expected error captured in state")
	}

	g.ClearError("p1", schemas.InteractionModeComment)
	if state := g.State("p1", schemas.InteractionModeComment); state.Err != "" {
		t.Fatalf("expected error cleared, got %q", state.Err)
	}
}

func TestConcurrentCallsShareOneSubmission(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			<-release
			return nil, sdk.ErrNotFound
		},
		submit: func(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
			return &schemas.Interaction{ProductID: productID, Mode: mode, CommentID: "once"}, nil
		},
	}
	g := New(api)

	const callers = 8
	var wg sync.WaitGroup
	records := make([]*schemas.Interaction, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{})
		}(i)
	}
	close(release)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if records[i] == nil || records[i].CommentID != "once" {
			t.Fatalf("caller %d got %+v", i, records[i])
		}
	}
	if got := api.submitCalls.Load(); got != 1 {
		t.Fatalf("expected one submit across concurrent callers, got %d", got)
	}
}

func TestRepeatTriggerReturnsCachedRecord(t *testing.T) {
	getCalls := 0
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			getCalls++
			return nil, sdk.ErrNotFound
		},
		submit: func(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
			return &schemas.Interaction{ProductID: productID, Mode: mode}, nil
		},
	}
	g := New(api)

	if _, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{}); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if getCalls != 1 {
		t.Fatalf("expected one existence check, got %d", getCalls)
	}
	if got := api.submitCalls.Load(); got != 1 {
		t.Fatalf("expected one submit, got %d", got)
	}
}

func TestModesAreIndependentKeys(t *testing.T) {
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			return nil, sdk.ErrNotFound
		},
		submit: func(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
			return &schemas.Interaction{ProductID: productID, Mode: mode}, nil
		},
	}
	g := New(api)

	if _, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{}); err != nil {
		t.Fatalf("comment Submit: %v", err)
	}
	if _, err := g.Submit(context.Background(), "p1", schemas.InteractionModePost, sdk.SubmitOptions{}); err != nil {
		t.Fatalf("post Submit: %v", err)
	}
	if got := api.submitCalls.Load(); got != 2 {
		t.Fatalf("expected one submit per mode, got %d", got)
	}
}

func TestResetForgetsKey(t *testing.T) {
	api := &fakeAPI{
		get: func(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error) {
			return nil, sdk.ErrNotFound
		},
		submit: func(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
			return &schemas.Interaction{ProductID: productID, Mode: mode}, nil
		},
	}
	g := New(api)

	if _, err := g.Submit(context.Background(), "p1", schemas.InteractionModeComment, sdk.SubmitOptions{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	g.Reset("p1", schemas.InteractionModeComment)
	if state := g.State("p1", schemas.InteractionModeComment); state.Interaction != nil {
		t.Fatalf("expected state forgotten after Reset")
	}
}
