package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/pluma/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Plugin  string                     `json:"plugin,omitempty"`
	Actions int                        `json:"actions"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// newValidateCommand creates the dev validate command.
func newValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plugin-dir>",
		Short: "Validate a plugin directory without installing it",
		Long: `Validate a plugin's plugin.yaml and CUE action signatures.

Reports every problem found instead of stopping at the first one, which
makes it suitable for development feedback while writing a plugin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := compiler.LoadPlugin(dir, compiler.LoadModeCollectAll)

	// Directory or manifest problems leave nothing to validate
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, compiler.ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)
	for _, action := range loadResult.Plugin.Actions {
		formatter.VerboseLog("Compiled action: %s", action.ID)
	}

	validationErrors := toValidationErrors(loadErrors)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, loadResult)
}

// toValidationErrors flattens load and signature errors into one list.
func toValidationErrors(errs []error) []compiler.ValidationError {
	out := make([]compiler.ValidationError, 0, len(errs))
	for _, err := range errs {
		var verr compiler.ValidationError
		var loadErr *compiler.LoadError
		switch {
		case errors.As(err, &verr):
			out = append(out, verr)
		case errors.As(err, &loadErr):
			out = append(out, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr.Pos),
			})
		default:
			out = append(out, compiler.ValidationError{
				Field:   "plugin",
				Message: err.Error(),
				Code:    compiler.ErrCodeGeneric,
			})
		}
	}
	return out
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *compiler.LoadResult) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:   true,
			Plugin:  result.Plugin.Name,
			Actions: len(result.Plugin.Actions),
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ %s %s is valid (%d action(s))\n",
		result.Plugin.Name, result.Plugin.Version, len(result.Plugin.Actions))
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	if formatter.Format == "json" {
		return &ExitError{Code: ExitFailure}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure}
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return &ExitError{Code: ExitFailure}
}
