package handler

import (
	"path/filepath"
	"strings"

	"github.com/roach88/pluma/internal/ir"
)

// Only the syntax of references is checked here. Whether the files exist
// and hold what they claim is up to the executor.

type artifactConverter struct{}

func (artifactConverter) convert(option, token string) (ir.IRValue, error) {
	if strings.TrimSpace(token) == "" {
		return nil, invalid(option, token, "is not a path")
	}
	return ir.IRArtifact{Path: token}, nil
}

// artifactHandler handles a single artifact input.
type artifactHandler struct {
	base
}

func (h *artifactHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	token, ok, err := h.single(occ, fallback)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return h.omitted()
	}
	v, err := artifactConverter{}.convert(h.opt.Name, token)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// metadataHandler handles a metadata parameter. It takes one or more files,
// greedily and across repeated occurrences; the executor merges them.
type metadataHandler struct {
	base
}

func (h *metadataHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	var files []string
	for _, o := range occ {
		if len(o.Values) == 0 {
			return nil, false, missingValue(o.Name)
		}
		files = append(files, o.Values...)
	}
	if len(occ) == 0 {
		files = append(files, fallback...)
	}
	if len(files) == 0 {
		return h.omitted()
	}
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			return nil, false, invalid(h.opt.Name, f, "is not a path")
		}
	}
	return ir.IRMetadata{Files: files}, true, nil
}

// columnHandler handles a metadata column parameter, written FILE:COLUMN.
// The split is at the last colon so that the file part may contain one.
type columnHandler struct {
	base
}

func (h *columnHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	token, ok, err := h.single(occ, fallback)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return h.omitted()
	}
	i := strings.LastIndexByte(token, ':')
	if i < 0 {
		return nil, false, invalid(h.opt.Name, token, "is not of the form FILE:COLUMN")
	}
	file, column := token[:i], token[i+1:]
	if file == "" {
		return nil, false, invalid(h.opt.Name, token, "does not name a metadata file")
	}
	if column == "" {
		return nil, false, invalid(h.opt.Name, token, "does not name a column")
	}
	return ir.IRMetadata{Files: []string{file}, Column: column}, true, nil
}

// OutputHandler handles an output. It resolves only explicitly given
// paths; routing through --output-dir or a command config is up to the
// dispatcher.
type OutputHandler struct {
	base
	ext string
}

// Extension is the output's file extension, including the dot.
func (h *OutputHandler) Extension() string { return h.ext }

// Required implements Handler. Every output must end up with a path.
func (h *OutputHandler) Required() bool { return true }

// Resolve implements Handler. The value is the output path as an
// ir.IRString, with the extension appended when the path lacks it.
func (h *OutputHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	token, ok, err := h.single(occ, fallback)
	if err != nil || !ok {
		return nil, false, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, false, invalid(h.opt.Name, token, "is not a path")
	}
	return ir.IRString(h.WithExtension(token)), true, nil
}

// WithExtension appends the output's extension to path unless it is
// already there.
func (h *OutputHandler) WithExtension(path string) string {
	if h.ext == "" || filepath.Ext(path) == h.ext {
		return path
	}
	return path + h.ext
}

// RenderHelp implements Handler.
func (h *OutputHandler) RenderHelp(l Layout) string {
	return renderHelp(l, h.opt, typeLabel(h.param.Type), h.param.Description, "[required]")
}
