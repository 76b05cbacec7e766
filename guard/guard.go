// Package guard wraps the one-time Reddit publish so it fires at most once
// per (product, mode) pair even across repeated triggers. The check-then-
// submit sequence here is a best-effort optimization: true exactly-once
// depends on the backend's uniqueness constraint on (product_id, mode).
package guard

import (
	"context"
	"errors"
	"sync"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
	"github.com/zazzle-agent/taskwatch/sdk"
)

// API is the slice of the backend client the guard needs. *sdk.Client
// satisfies it.
type API interface {
	Interaction(ctx context.Context, productID string, mode schemas.InteractionMode) (*schemas.Interaction, error)
	SubmitInteraction(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error)
}

// State is the per-key view exposed to callers.
type State struct {
	Submitting  bool
	Interaction *schemas.Interaction
	Err         string
}

type key struct {
	productID string
	mode      schemas.InteractionMode
}

type entry struct {
	state State
	done  chan struct{} // non-nil while a get-or-submit is in flight
}

type Guard struct {
	api API

	mu      sync.Mutex
	entries map[key]*entry
}

func New(api API) *Guard {
	return &Guard{
		api:     api,
		entries: make(map[key]*entry),
	}
}

// Submit resolves the interaction for (productID, mode): returns the existing
// record if one is already known or recorded backend-side, submits exactly
// once if the backend reports not-found, and refuses to submit on any
// ambiguous existence-check failure. Concurrent calls for the same key share
// one in-flight attempt.
//
// The resulting error is both returned and captured in State, so callers can
// handle it locally or read it back later.
func (g *Guard) Submit(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
	k := key{productID: productID, mode: mode}

	g.mu.Lock()
	e, ok := g.entries[k]
	if !ok {
		e = &entry{}
		g.entries[k] = e
	}
	if e.state.Interaction != nil {
		record := e.state.Interaction
		g.mu.Unlock()
		return record, nil
	}
	if e.done != nil {
		done := e.done
		g.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		g.mu.Lock()
		defer g.mu.Unlock()
		if e.state.Interaction != nil {
			return e.state.Interaction, nil
		}
		if e.state.Err != "" {
			return nil, errors.New(e.state.Err)
		}
		return nil, nil
	}
	e.done = make(chan struct{})
	e.state.Submitting = true
	e.state.Err = ""
	g.mu.Unlock()

	record, err := g.getOrSubmit(ctx, productID, mode, opts)

	g.mu.Lock()
	e.state.Submitting = false
	if err != nil {
		e.state.Err = err.Error()
	} else {
		e.state.Interaction = record
	}
	close(e.done)
	e.done = nil
	g.mu.Unlock()

	return record, err
}

func (g *Guard) getOrSubmit(ctx context.Context, productID string, mode schemas.InteractionMode, opts sdk.SubmitOptions) (*schemas.Interaction, error) {
	existing, err := g.api.Interaction(ctx, productID, mode)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sdk.ErrNotFound) {
		// Ambiguous existence check. Submitting here could double the side
		// effect, so surface the error instead.
		return nil, err
	}
	return g.api.SubmitInteraction(ctx, productID, mode, opts)
}

// State reads the current per-key view.
func (g *Guard) State(productID string, mode schemas.InteractionMode) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key{productID: productID, mode: mode}]
	if !ok {
		return State{}
	}
	return e.state
}

// Reset forgets everything known about the key. An in-flight attempt keeps
// running but its outcome is discarded along with the old entry.
func (g *Guard) Reset(productID string, mode schemas.InteractionMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key{productID: productID, mode: mode})
}

// ClearError wipes the recorded error, keeping any resolved record.
func (g *Guard) ClearError(productID string, mode schemas.InteractionMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.entries[key{productID: productID, mode: mode}]; ok {
		e.state.Err = ""
	}
}
