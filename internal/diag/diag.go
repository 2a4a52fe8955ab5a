// Package diag defines the error kinds reported by the command-line front
// end and the accumulation helpers used to report every problem with an
// invocation in one pass.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a reported problem.
type Kind string

const (
	UnknownCommand           Kind = "UnknownCommand"
	UnknownOption            Kind = "UnknownOption"
	MissingRequiredParameter Kind = "MissingRequiredParameter"
	InvalidValue             Kind = "InvalidValue"
	ConflictingFlags         Kind = "ConflictingFlags"
	OutputPathExists         Kind = "OutputPathExists"
	CacheCorrupt             Kind = "CacheCorrupt"
	RegistryUnavailable      Kind = "RegistryUnavailable"
	ExecutorFailure          Kind = "ExecutorFailure"
)

// Error is a single structured problem. Option names the offending flag or
// command path segment; Value holds the token that failed, if any.
type Error struct {
	Kind        Kind
	Option      string
	Value       string
	Message     string
	Suggestions []string
	Err         error
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, option, format string, args ...any) *Error {
	return &Error{Kind: kind, Option: option, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if len(e.Suggestions) > 0 {
		msg = fmt.Sprintf("%s (did you mean: %s?)", msg, strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's tree, or "" if none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// List accumulates problems. The zero value is ready to use.
type List []error

// Add appends errs, flattening nested Lists and skipping nils.
func (l *List) Add(errs ...error) {
	for _, err := range errs {
		if err == nil {
			continue
		}
		var nested List
		if errors.As(err, &nested) {
			*l = append(*l, nested...)
			continue
		}
		*l = append(*l, err)
	}
}

// Err returns nil for an empty list, the list itself otherwise.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Has reports whether any accumulated problem is of the given kind.
func (l List) Has(kind Kind) bool {
	for _, err := range l {
		if KindOf(err) == kind {
			return true
		}
	}
	return false
}

func (l List) Error() string {
	return l.Report()
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As.
func (l List) Unwrap() []error {
	return l
}

// Header returns the line that introduces a consolidated report.
func (l List) Header() string {
	if len(l) == 1 {
		return "There was a problem with the command:"
	}
	return "There were some problems with the command:"
}

// Lines returns one numbered line per problem: " (k/N) message".
func (l List) Lines() []string {
	lines := make([]string, len(l))
	for i, err := range l {
		lines[i] = fmt.Sprintf(" (%d/%d) %s", i+1, len(l), err.Error())
	}
	return lines
}

// Report renders the header followed by every numbered problem.
func (l List) Report() string {
	if len(l) == 0 {
		return ""
	}
	return l.Header() + "\n" + strings.Join(l.Lines(), "\n")
}
