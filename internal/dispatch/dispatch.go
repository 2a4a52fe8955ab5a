// Package dispatch runs an action of the command tree: it scans the
// action's arguments, validates them through the leaf's handlers, routes
// outputs and hands the result to the executor.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/pluma/internal/config"
	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/executor"
	"github.com/roach88/pluma/internal/handler"
	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/store"
	"github.com/roach88/pluma/internal/style"
	"github.com/roach88/pluma/internal/tree"
)

// Journal records dispatched invocations. *store.Journal implements it.
type Journal interface {
	Record(ctx context.Context, inv store.Invocation) (string, error)
}

// ReportedError is returned once a problem has been written to Stderr.
// Code is the process exit status.
type ReportedError struct {
	Code int
	Err  error
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }

// Dispatcher runs leaves of the command tree.
type Dispatcher struct {
	Executor executor.Executor
	Stdout   io.Writer
	Stderr   io.Writer
	Layout   handler.Layout
	Style    Styler
	// Journal is optional.
	Journal Journal
	// CmdConfig supplies fallback values when --cmd-config is not given.
	CmdConfig config.CmdConfig
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d *Dispatcher) style() Styler {
	if d.Style == nil {
		return style.Plain()
	}
	return d.Style
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Dispatch validates args against leaf and executes the action.
//
// Every problem with the command line is collected and reported together;
// the executor is only called when there are none. A nil error means the
// action ran, or help or citations were printed.
func (d *Dispatcher) Dispatch(ctx context.Context, leaf *tree.Node, args []string) error {
	if leaf == nil || leaf.Kind != tree.Leaf {
		return errors.New("dispatch: not an action")
	}
	st := d.style()
	s := scanArgs(leaf, args)

	if s.help {
		fmt.Fprint(d.Stdout, Help(leaf, d.Layout, st))
		return nil
	}
	if s.citations {
		fmt.Fprintln(d.Stdout, Citations(leaf.Plugin))
		return nil
	}

	req, errs := d.resolve(leaf, s)
	if err := errs.Err(); err != nil {
		d.report(leaf, errs)
		return &ReportedError{Code: 1, Err: err}
	}

	if s.outputDir != "" {
		if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
			errs.Add(&diag.Error{Kind: diag.InvalidValue, Option: optOutputDir, Value: s.outputDir,
				Message: "Could not create " + optOutputDir, Err: err})
			d.report(leaf, errs)
			return &ReportedError{Code: 1, Err: errs.Err()}
		}
	}
	req.Verbose = s.verbose

	log := d.logger().With("plugin", req.Plugin, "action", req.Action)
	log.Debug("dispatching action", "outputs", len(req.Outputs))

	started := d.now()
	result, err := d.Executor.Execute(ctx, req)
	finished := d.now()

	inv := store.Invocation{
		Plugin:        req.Plugin,
		PluginVersion: req.Version,
		Action:        req.Action,
		Params:        req.Params,
		Outputs:       req.Outputs,
		StartedAt:     started,
		FinishedAt:    finished,
	}

	if err != nil {
		code := 1
		var execErr *executor.Error
		if errors.As(err, &execErr) {
			code = execErr.Code
		}
		inv.ExitCode = code
		inv.Error = err.Error()
		d.record(ctx, log, inv)

		fmt.Fprintln(d.Stderr, st.Error(err.Error()))
		return &ReportedError{Code: code, Err: &diag.Error{
			Kind:    diag.ExecutorFailure,
			Message: "executing " + leaf.Path(),
			Err:     err,
		}}
	}
	d.record(ctx, log, inv)

	for _, h := range leaf.Handlers {
		out, ok := h.(*handler.OutputHandler)
		if !ok {
			continue
		}
		path := req.Outputs[out.Name()]
		if p, ok := result.Outputs[out.Name()]; ok {
			path = p
		}
		fmt.Fprintln(d.Stdout, st.Success(fmt.Sprintf("Saved %s to: %s", out.Type(), path)))
	}
	return nil
}

// resolve runs every handler and builds the request.
func (d *Dispatcher) resolve(leaf *tree.Node, s *scan) (executor.Request, diag.List) {
	errs := s.errs

	cc := d.CmdConfig
	if s.cmdConfig != "" {
		loaded, err := config.LoadCmdConfig(s.cmdConfig)
		if err != nil {
			errs.Add(&diag.Error{Kind: diag.InvalidValue, Option: optCmdConfig, Value: s.cmdConfig,
				Message: "Invalid value for " + optCmdConfig, Err: err})
		}
		cc = loaded
	}
	group := ""
	if leaf.Parent != nil {
		group = leaf.Parent.Name
	}

	req := executor.Request{
		Plugin:     leaf.Plugin.Name,
		Version:    leaf.Plugin.Version,
		Action:     leaf.Action.ID,
		Executable: leaf.Plugin.Executable,
		Params:     ir.IRObject{},
		Outputs:    map[string]string{},
	}
	writers := map[string]string{}

	for _, h := range leaf.Handlers {
		opt := h.Option()
		occ := s.occurrences[h.Name()]
		fallback := cc.Fallback(group, leaf.Name, opt.Name)

		out, isOutput := h.(*handler.OutputHandler)
		if !isOutput {
			v, present, err := h.Resolve(occ, fallback)
			if err != nil {
				errs.Add(err)
				continue
			}
			if present {
				req.Params[h.Name()] = v
			}
			continue
		}

		v, present, err := out.Resolve(occ, fallback)
		if err != nil {
			errs.Add(err)
			continue
		}
		var path string
		switch {
		case present:
			path = string(v.(ir.IRString))
		case s.outputDir != "":
			path = filepath.Join(s.outputDir, out.Name()+out.Extension())
		default:
			errs.Add(&diag.Error{
				Kind:    diag.MissingRequiredParameter,
				Option:  opt.Name,
				Message: fmt.Sprintf("Missing option: %s (%s may also be used)", opt.Name, optOutputDir),
			})
			continue
		}

		if prev, ok := writers[path]; ok {
			errs.Add(&diag.Error{
				Kind:    diag.ConflictingFlags,
				Option:  opt.Name,
				Value:   path,
				Message: fmt.Sprintf("%s and %s both write to %s", prev, opt.Name, path),
			})
			continue
		}
		writers[path] = opt.Name
		if _, err := os.Lstat(path); err == nil {
			errs.Add(&diag.Error{
				Kind:    diag.OutputPathExists,
				Option:  opt.Name,
				Value:   path,
				Message: fmt.Sprintf("Output path already exists for %s: %s", opt.Name, path),
			})
			continue
		}
		req.Outputs[out.Name()] = path
	}
	return req, errs
}

// report prints the help of leaf followed by every problem.
func (d *Dispatcher) report(leaf *tree.Node, errs diag.List) {
	st := d.style()
	var b strings.Builder
	b.WriteString(Help(leaf, d.Layout, st))
	b.WriteString("\n")
	b.WriteString(st.Problem(errs.Header()))
	b.WriteString("\n")
	for _, line := range errs.Lines() {
		b.WriteString(st.Problem(line))
		b.WriteString("\n")
	}
	fmt.Fprint(d.Stderr, b.String())
}

func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, inv store.Invocation) {
	if d.Journal == nil {
		return
	}
	if _, err := d.Journal.Record(ctx, inv); err != nil {
		log.Warn("invocation not journaled", "error", err)
	}
}
