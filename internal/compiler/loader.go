package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pluma/internal/plugin"
)

// LoadMode controls how errors are handled while loading a plugin.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains a compiled plugin and what it was compiled from.
type LoadResult struct {
	Plugin    plugin.Plugin
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading a plugin.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - shared with the dev validate command.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeManifest    = "E003" // plugin.yaml missing or invalid
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
)

// LoadPlugin reads plugin.yaml from dir and compiles every action declared
// under the top-level "action" struct of the directory's CUE package.
// A plugin without CUE files is valid and simply has no actions.
func LoadPlugin(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plugin directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing plugin directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	manifest, err := ReadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeManifest, Message: err.Error()}}
	}

	result := &LoadResult{Plugin: plugin.Plugin{
		Name:             manifest.Name,
		Version:          manifest.Version,
		Website:          manifest.Website,
		Citation:         manifest.Citation,
		UserSupport:      manifest.UserSupport,
		Description:      manifest.Description,
		ShortDescription: manifest.ShortDescription,
		Executable:       manifest.Executable,
	}}
	if result.Plugin.Executable != "" && !filepath.IsAbs(result.Plugin.Executable) {
		result.Plugin.Executable = filepath.Join(dir, result.Plugin.Executable)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	result.FileCount = len(cueFiles)
	if len(cueFiles) == 0 {
		return result, nil
	}

	value, loadErr := buildValue(dir)
	if loadErr != nil {
		return nil, []error{loadErr}
	}

	var errs []error
	actionsVal := value.LookupPath(cue.ParsePath("action"))
	if actionsVal.Exists() {
		iter, iterErr := actionsVal.Fields()
		if iterErr != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating actions: %v", iterErr)}}
		}
		for iter.Next() {
			action, compileErr := CompileAction(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "action."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Plugin.Actions = append(result.Plugin.Actions, *action)
		}
	}

	for _, verr := range Validate(&result.Plugin) {
		errs = append(errs, verr)
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	return result, errs
}

// buildValue loads the CUE package in dir.
func buildValue(dir string) (cue.Value, *LoadError) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, nil
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeInvalidSignature,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
