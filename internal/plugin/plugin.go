// Package plugin holds the in-memory signature model of installed plugins:
// their identity, their actions, and the typed parameters and outputs of
// each action.
//
// Descriptors are owned by the registry. Everything downstream (the
// registry cache, the command tree, the dispatcher) only reads them.
package plugin

import (
	"strings"
)

// Plugin describes one installed plugin.
type Plugin struct {
	Name             string   `cbor:"name" json:"name"`
	Version          string   `cbor:"version" json:"version"`
	Website          string   `cbor:"website,omitempty" json:"website,omitempty"`
	Citation         string   `cbor:"citation,omitempty" json:"citation,omitempty"`
	UserSupport      string   `cbor:"user_support,omitempty" json:"user_support,omitempty"`
	Description      string   `cbor:"description,omitempty" json:"description,omitempty"`
	ShortDescription string   `cbor:"short_description,omitempty" json:"short_description,omitempty"`
	Executable       string   `cbor:"executable,omitempty" json:"executable,omitempty"`
	ContentHash      string   `cbor:"content_hash" json:"content_hash"`
	Actions          []Action `cbor:"actions" json:"actions"`
}

// Action describes one invocable operation of a plugin.
type Action struct {
	ID          string     `cbor:"id" json:"id"`
	Name        string     `cbor:"name" json:"name"`
	Description string     `cbor:"description,omitempty" json:"description,omitempty"`
	Kind        ActionKind `cbor:"kind" json:"kind"`
	Deprecated  bool       `cbor:"deprecated,omitempty" json:"deprecated,omitempty"`
	Inputs      []Param    `cbor:"inputs" json:"inputs"`
	Parameters  []Param    `cbor:"parameters" json:"parameters"`
	Outputs     []Output   `cbor:"outputs" json:"outputs"`
}

// ActionKind distinguishes how an action produces its results.
type ActionKind string

const (
	KindMethod     ActionKind = "method"
	KindVisualizer ActionKind = "visualizer"
	KindPipeline   ActionKind = "pipeline"
)

// Param describes an input or a parameter. A nil Default marks the
// parameter as required.
type Param struct {
	Name        string   `cbor:"name" json:"name"`
	Type        Type     `cbor:"type" json:"type"`
	Default     *Literal `cbor:"default,omitempty" json:"default,omitempty"`
	Description string   `cbor:"description,omitempty" json:"description,omitempty"`
}

// Required reports whether the parameter has no default.
func (p Param) Required() bool {
	return p.Default == nil
}

// Output describes one declared result of an action.
type Output struct {
	Name        string `cbor:"name" json:"name"`
	Type        Type   `cbor:"type" json:"type"`
	Extension   string `cbor:"extension" json:"extension"`
	Description string `cbor:"description,omitempty" json:"description,omitempty"`
}

// Namespace is the syntactic prefix of an option: --i-, --p-, --m- or --o-.
type Namespace string

const (
	NamespaceInput     Namespace = "i"
	NamespaceParameter Namespace = "p"
	NamespaceMetadata  Namespace = "m"
	NamespaceOutput    Namespace = "o"
)

// ParameterNamespace returns the namespace a parameter of type t lives in.
// Metadata references get their own namespace; everything else is "p".
func ParameterNamespace(t Type) Namespace {
	if t.IsMetadata() {
		return NamespaceMetadata
	}
	return NamespaceParameter
}

// CLIName converts an API name to its command-line spelling.
func CLIName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// OptionName returns the long option for a name in a namespace,
// e.g. OptionName(NamespaceParameter, "n_jobs") == "--p-n-jobs".
func OptionName(ns Namespace, name string) string {
	return "--" + string(ns) + "-" + CLIName(name)
}

// DefaultExtension returns the file extension used for an output of type t
// when the descriptor does not declare one.
func DefaultExtension(t Type) string {
	if t.Kind == KindVisualization {
		return ".qzv"
	}
	return ".qza"
}

// Identity is the cheap fingerprint input for a plugin: enough to detect
// that anything about it changed, without introspecting its actions.
type Identity struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	ContentHash string `json:"content_hash"`
}

// Identity returns the plugin's identity triple.
func (p Plugin) Identity() Identity {
	return Identity{Name: p.Name, Version: p.Version, ContentHash: p.ContentHash}
}

// HasActions reports whether the plugin contributes anything to the
// command tree.
func (p Plugin) HasActions() bool {
	return len(p.Actions) > 0
}
