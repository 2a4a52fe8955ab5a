package dispatch

import (
	"slices"
	"strings"

	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/handler"
	"github.com/roach88/pluma/internal/tree"
)

// Options every action accepts in addition to its own.
const (
	optOutputDir    = "--output-dir"
	optCmdConfig    = "--cmd-config"
	optVerbose      = "--verbose"
	optVerboseShort = "-v"
	optCitations    = "--citations"
	optHelp         = "--help"
	optHelpShort    = "-h"
)

var metaOptions = []struct {
	opt         handler.Option
	description string
}{
	{handler.Option{Name: optOutputDir, Arity: handler.ArityOne, Path: true, ValueHint: "PATH"},
		"Output unspecified results to a directory."},
	{handler.Option{Name: optCmdConfig, Arity: handler.ArityOne, Path: true, ValueHint: "FILE"},
		"Use a YAML file for command options."},
	{handler.Option{Name: optVerbose, Arity: handler.ArityFlag},
		"Display verbose output to stdout and/or stderr during execution of this action."},
	{handler.Option{Name: optCitations, Arity: handler.ArityFlag},
		"Show citations and exit."},
	{handler.Option{Name: optHelp, Arity: handler.ArityFlag},
		"Show this message and exit."},
}

// MetaOptions returns the options every action accepts besides its
// handlers' options.
func MetaOptions() []handler.Option {
	opts := make([]handler.Option, len(metaOptions))
	for i, m := range metaOptions {
		opts[i] = m.opt
	}
	return opts
}

// scan is the result of splitting an action's arguments into option
// occurrences.
type scan struct {
	// occurrences by handler name, in command-line order
	occurrences map[string][]handler.Occurrence

	outputDir string
	cmdConfig string
	verbose   bool
	citations bool
	help      bool

	errs diag.List
}

// isOption reports whether tok starts an option. A single dash is only
// meaningful as -h or -v, so negative numbers stay values.
func isOption(tok string) bool {
	return tok == optHelpShort || tok == optVerboseShort || len(tok) > 2 && strings.HasPrefix(tok, "--")
}

// scanArgs groups args by option. Each option consumes the tokens its arity
// allows; anything else is reported.
func scanArgs(leaf *tree.Node, args []string) *scan {
	s := &scan{occurrences: make(map[string][]handler.Occurrence)}

	for i := 0; i < len(args); i++ {
		tok := args[i]
		if !isOption(tok) {
			s.errs.Add(&diag.Error{
				Kind:    diag.UnknownOption,
				Value:   tok,
				Message: "Got unexpected extra argument (" + tok + ")",
			})
			continue
		}
		name, inline, hasInline := strings.Cut(tok, "=")

		// following returns the tokens after i that an option of arity a
		// consumes, advancing i past them.
		following := func(a handler.Arity, literals []string) []string {
			if hasInline {
				return []string{inline}
			}
			var values []string
			switch a {
			case handler.ArityFlag:
				if i+1 < len(args) && slices.Contains(literals, args[i+1]) {
					i++
					values = append(values, args[i])
				}
			case handler.ArityOne:
				if i+1 < len(args) && !isOption(args[i+1]) {
					i++
					values = append(values, args[i])
				}
			case handler.ArityGreedy:
				for i+1 < len(args) && !isOption(args[i+1]) {
					i++
					values = append(values, args[i])
				}
			}
			return values
		}

		switch name {
		case optOutputDir, optCmdConfig:
			values := following(handler.ArityOne, nil)
			if len(values) == 0 || values[0] == "" {
				s.errs.Add(diag.Newf(diag.InvalidValue, name, "%s requires a value", name))
				continue
			}
			if name == optOutputDir {
				s.outputDir = values[0]
			} else {
				s.cmdConfig = values[0]
			}
			continue
		case optVerbose, optVerboseShort, optCitations, optHelp, optHelpShort:
			if hasInline {
				s.errs.Add(&diag.Error{
					Kind:    diag.InvalidValue,
					Option:  name,
					Value:   inline,
					Message: "Invalid value for " + name + ": " + name + " takes no value",
				})
				continue
			}
			switch name {
			case optVerbose, optVerboseShort:
				s.verbose = true
			case optCitations:
				s.citations = true
			default:
				s.help = true
			}
			continue
		}

		h := leaf.Handler(name)
		if h == nil {
			s.errs.Add(&diag.Error{
				Kind:        diag.UnknownOption,
				Option:      name,
				Message:     "No such option: " + name,
				Suggestions: diag.CloseMatches(name, optionNames(leaf)),
			})
			// Drop the values the unknown option was probably given.
			for i+1 < len(args) && !isOption(args[i+1]) {
				i++
			}
			continue
		}

		opt := h.Option()
		literals := opt.Literals
		if name == opt.Negated {
			literals = nil
		}
		s.occurrences[h.Name()] = append(s.occurrences[h.Name()], handler.Occurrence{
			Name:   name,
			Values: following(opt.Arity, literals),
		})
	}
	return s
}

// optionNames lists every spelling a leaf accepts, for suggestions.
func optionNames(leaf *tree.Node) []string {
	var names []string
	for _, h := range leaf.Handlers {
		names = append(names, h.Option().Names()...)
	}
	for _, m := range metaOptions {
		names = append(names, m.opt.Name)
	}
	return names
}
