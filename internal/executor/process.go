package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Process runs an action by spawning the plugin's executable:
//
//	<executable> run <action-id>
//
// The Request is written to the child's stdin as JSON. The child's stdout
// and stderr are streamed through. A nonzero exit becomes an *Error whose
// message is the last line the child wrote to stderr.
type Process struct {
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
}

// NewProcess creates a Process that streams to the given writers and runs
// children with the current environment.
func NewProcess(stdout, stderr io.Writer) *Process {
	return &Process{Stdout: stdout, Stderr: stderr, Env: os.Environ()}
}

// Execute implements Executor.
func (p *Process) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Executable == "" {
		return Result{}, &Error{Code: 1, Message: fmt.Sprintf("plugin %s declares no executable", req.Plugin)}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	var tail tailBuffer
	cmd := exec.CommandContext(ctx, req.Executable, "run", req.Action)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = p.Stdout
	cmd.Stderr = io.MultiWriter(writerOrDiscard(p.Stderr), &tail)
	cmd.Env = append(append([]string(nil), p.Env...), "PLUMA_ACTION="+req.Plugin+"."+req.Action)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := tail.lastLine()
			if msg == "" {
				msg = fmt.Sprintf("%s %s exited with status %d", req.Plugin, req.Action, exitErr.ExitCode())
			}
			code := exitErr.ExitCode()
			if code <= 0 {
				// Killed by a signal.
				code = 1
			}
			return Result{}, &Error{Code: code, Message: msg}
		}
		return Result{}, &Error{Code: 1, Message: fmt.Sprintf("run %s", req.Executable), Err: err}
	}

	return Result{Outputs: req.Outputs}, nil
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last few KiB written to it.
type tailBuffer struct {
	buf []byte
}

const tailLimit = 4096

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > tailLimit {
		t.buf = t.buf[len(t.buf)-tailLimit:]
	}
	return len(p), nil
}

func (t *tailBuffer) lastLine() string {
	lines := strings.Split(strings.TrimRight(string(t.buf), "\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
