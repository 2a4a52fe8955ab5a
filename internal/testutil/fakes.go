package testutil

import (
	"context"
	"sync"

	"github.com/roach88/pluma/internal/executor"
	"github.com/roach88/pluma/internal/plugin"
)

// CountingRegistry serves a fixed plugin set and counts calls.
type CountingRegistry struct {
	mu         sync.Mutex
	plugins    []plugin.Plugin
	identities int
	loads      int

	// IdentitiesErr and LoadErr, when set, are returned by the
	// corresponding call.
	IdentitiesErr error
	LoadErr       error
}

// NewCountingRegistry creates a registry over plugins.
func NewCountingRegistry(plugins ...plugin.Plugin) *CountingRegistry {
	return &CountingRegistry{plugins: plugins}
}

// Set replaces the installed plugin set.
func (r *CountingRegistry) Set(plugins ...plugin.Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = plugins
}

// Identities returns the identity triple of every plugin.
func (r *CountingRegistry) Identities(context.Context) ([]plugin.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities++
	if r.IdentitiesErr != nil {
		return nil, r.IdentitiesErr
	}
	ids := make([]plugin.Identity, len(r.plugins))
	for i, p := range r.plugins {
		ids[i] = p.Identity()
	}
	return ids, nil
}

// Load returns a copy of the plugin set.
func (r *CountingRegistry) Load(context.Context) ([]plugin.Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	if r.LoadErr != nil {
		return nil, r.LoadErr
	}
	return append([]plugin.Plugin(nil), r.plugins...), nil
}

// Loads returns how many times Load was called.
func (r *CountingRegistry) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// IdentityCalls returns how many times Identities was called.
func (r *CountingRegistry) IdentityCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identities
}

// RecordingExecutor records requests instead of running anything.
type RecordingExecutor struct {
	mu       sync.Mutex
	requests []executor.Request

	// Err is returned from Execute when set.
	Err error
}

// Execute records req and reports every requested output as written.
func (e *RecordingExecutor) Execute(_ context.Context, req executor.Request) (executor.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.Err != nil {
		return executor.Result{}, e.Err
	}
	return executor.Result{Outputs: req.Outputs}, nil
}

// Requests returns every recorded request.
func (e *RecordingExecutor) Requests() []executor.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]executor.Request(nil), e.requests...)
}

// Calls returns the number of Execute calls.
func (e *RecordingExecutor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}
