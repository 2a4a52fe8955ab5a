// Package executor is the boundary to the action-execution collaborator.
// The command-line front end hands it a fully validated parameter bag and
// the resolved output paths; how the action computes its result is not
// this module's concern.
package executor

import (
	"context"
	"fmt"

	"github.com/roach88/pluma/internal/ir"
)

// Request is one validated action invocation.
type Request struct {
	Plugin     string            `json:"plugin"`
	Version    string            `json:"version"`
	Action     string            `json:"action"`
	Executable string            `json:"-"`
	Params     ir.IRObject       `json:"params"`
	Outputs    map[string]string `json:"outputs"`
	Verbose    bool              `json:"verbose,omitempty"`
}

// Result reports where outputs were written. Outputs may be nil when the
// executor wrote exactly the requested paths.
type Result struct {
	Outputs map[string]string `json:"outputs,omitempty"`
}

// Executor runs actions.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Error is a failure reported by the collaborator. Code is its exit
// status, which the CLI passes through.
type Error struct {
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Func adapts a function to the Executor interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
