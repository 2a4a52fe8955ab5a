package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/pluma/internal/plugin"
)

// Validation error codes (E100-E199)
const (
	ErrCodeInvalidSignature = "E100" // action signature failed to compile

	ErrDuplicateName      = "E101" // duplicate parameter/output name within an action
	ErrDuplicateCLIName   = "E102" // two names map to the same command-line spelling
	ErrActionNoOutputs    = "E103" // action must declare outputs
	ErrInvalidInputType   = "E104" // inputs must reference artifacts
	ErrInvalidParamType   = "E105" // parameters must not reference artifacts
	ErrInvalidActionKind  = "E106" // unknown action kind
	ErrInvalidName        = "E107" // names must be lower_snake identifiers
	ErrInvalidPluginField = "E108" // plugin identity field invalid
)

// ValidationError represents a signature validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// pluginNamePattern also admits dashes: plugin names appear on the command
// line as-is.
var pluginNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Validate checks a compiled plugin against the signature rules.
// Returns all errors found (does not fail-fast).
func Validate(p *plugin.Plugin) []ValidationError {
	var errs []ValidationError

	if !pluginNamePattern.MatchString(p.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("invalid plugin name %q", p.Name),
			Code:    ErrInvalidPluginField,
		})
	}

	cliNames := make(map[string]string)
	for i, action := range p.Actions {
		field := fmt.Sprintf("actions[%d]", i)

		if !namePattern.MatchString(action.ID) {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("invalid action id %q", action.ID),
				Code:    ErrInvalidName,
			})
		}
		cli := plugin.CLIName(action.ID)
		if prev, ok := cliNames[cli]; ok {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("actions %q and %q both map to command %q", prev, action.ID, cli),
				Code:    ErrDuplicateCLIName,
			})
		}
		cliNames[cli] = action.ID

		errs = append(errs, validateAction(field, &action)...)
	}

	return errs
}

func validateAction(field string, action *plugin.Action) []ValidationError {
	var errs []ValidationError

	switch action.Kind {
	case plugin.KindMethod, plugin.KindVisualizer, plugin.KindPipeline:
	default:
		errs = append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("invalid action kind %q, must be method, visualizer or pipeline", action.Kind),
			Code:    ErrInvalidActionKind,
		})
	}

	if len(action.Outputs) == 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".outputs",
			Message: fmt.Sprintf("action %q must declare at least one output", action.ID),
			Code:    ErrActionNoOutputs,
		})
	}

	names := make(map[string]bool)
	cliNames := make(map[string]string)
	check := func(path, name string) {
		if !namePattern.MatchString(name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("invalid name %q", name),
				Code:    ErrInvalidName,
			})
		}
		if names[name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate name %q", name),
				Code:    ErrDuplicateName,
			})
			return
		}
		names[name] = true
		cli := plugin.CLIName(name)
		if prev, ok := cliNames[cli]; ok {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("%q and %q both map to %q", prev, name, cli),
				Code:    ErrDuplicateCLIName,
			})
		}
		cliNames[cli] = name
	}

	for j, in := range action.Inputs {
		path := fmt.Sprintf("%s.inputs[%d]", field, j)
		check(path, in.Name)
		if !in.Type.IsArtifact() {
			errs = append(errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("input %q must be an artifact type, got %s", in.Name, in.Type),
				Code:    ErrInvalidInputType,
			})
		}
	}
	for j, p := range action.Parameters {
		path := fmt.Sprintf("%s.parameters[%d]", field, j)
		check(path, p.Name)
		if p.Type.IsArtifact() || p.Type.Base().Kind == plugin.KindVisualization {
			errs = append(errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("parameter %q cannot be an artifact type; declare it as an input", p.Name),
				Code:    ErrInvalidParamType,
			})
		}
	}
	for j, out := range action.Outputs {
		check(fmt.Sprintf("%s.outputs[%d]", field, j), out.Name)
	}

	return errs
}
