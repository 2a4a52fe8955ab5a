// Package handler turns command-line text into validated values.
//
// Every input, parameter and output of an action gets exactly one Handler,
// chosen by the semantic type of its descriptor in For. A handler knows the
// option it owns, how many tokens that option consumes, how to parse and
// validate those tokens, how to render its help line and which values it
// can offer to shell completion.
package handler

import (
	"fmt"

	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
)

// Arity is how many tokens follow an option.
type Arity int

const (
	// ArityFlag options take no value, or one of Option.Literals.
	ArityFlag Arity = iota
	// ArityOne options take exactly one value.
	ArityOne
	// ArityGreedy options take every following token up to the next
	// option.
	ArityGreedy
)

// Option describes the command-line flag owned by a handler.
type Option struct {
	Name      string // e.g. --p-n-jobs
	Negated   string // e.g. --p-no-drop-undefined, bool parameters only
	Namespace plugin.Namespace
	Arity     Arity
	// Literals are the tokens an ArityFlag option may consume.
	Literals []string
	// Repeatable options accumulate across occurrences.
	Repeatable bool
	// Path options take filesystem paths.
	Path      bool
	ValueHint string
}

// Names returns every spelling of the option.
func (o Option) Names() []string {
	if o.Negated != "" {
		return []string{o.Name, o.Negated}
	}
	return []string{o.Name}
}

// Occurrence is one appearance of an option on the command line, under the
// spelling that was used.
type Occurrence struct {
	Name   string
	Values []string
}

// Handler converts the occurrences of one option into a value.
type Handler interface {
	// Name is the parameter's API name, its key in the parameter bag.
	Name() string
	Option() Option
	Type() plugin.Type
	Default() *plugin.Literal
	Description() string
	// Required reports whether omitting the option is an error.
	Required() bool
	// Resolve parses occurrences, or fallback when there are none.
	// present is false when the parameter is left out of the bag.
	Resolve(occurrences []Occurrence, fallback []string) (value ir.IRValue, present bool, err error)
	RenderHelp(layout Layout) string
	// Completions lists the option's enumerable values, if it has any.
	Completions() []string
}

// For returns the handler for an input or parameter in namespace ns.
func For(ns plugin.Namespace, p plugin.Param) Handler {
	b := base{param: p, opt: Option{Name: plugin.OptionName(ns, p.Name), Namespace: ns}}
	t := p.Type

	if t.Kind == plugin.KindOptional {
		def := p.Default
		if def == nil {
			def = plugin.None()
		}
		inner := For(ns, plugin.Param{Name: p.Name, Type: t.Base(), Default: def, Description: p.Description})
		return &optionalHandler{Handler: inner, typ: t}
	}

	switch t.Kind {
	case plugin.KindPrimitive:
		if t.Name == plugin.Bool {
			b.opt.Negated = plugin.OptionName(ns, "no_"+p.Name)
			b.opt.Arity = ArityFlag
			b.opt.Literals = []string{"true", "false"}
			return &boolHandler{base: b}
		}
		b.opt.Arity = ArityOne
		b.opt.ValueHint = primitiveHint(t)
		return &primitiveHandler{base: b, typ: t}
	case plugin.KindUnion:
		b.opt.Arity = ArityOne
		b.opt.ValueHint = "VALUE"
		return &unionHandler{base: b, members: t.Members}
	case plugin.KindCollection:
		elem := converterFor(*t.Element)
		b.opt.Arity = ArityGreedy
		b.opt.Repeatable = true
		b.opt.Path = t.Element.Kind == plugin.KindArtifact
		b.opt.ValueHint = elementHint(*t.Element) + "..."
		return &collectionHandler{base: b, typ: t, elem: elem}
	case plugin.KindArtifact:
		b.opt.Arity = ArityOne
		b.opt.Path = true
		b.opt.ValueHint = "ARTIFACT"
		return &artifactHandler{base: b}
	case plugin.KindMetadata:
		b.opt.Arity = ArityGreedy
		b.opt.Repeatable = true
		b.opt.Path = true
		b.opt.ValueHint = "METADATA..."
		return &metadataHandler{base: b}
	case plugin.KindMetadataColumn:
		b.opt.Arity = ArityOne
		b.opt.Path = true
		b.opt.ValueHint = "FILE:COLUMN"
		return &columnHandler{base: b}
	default:
		panic(fmt.Sprintf("handler: no handler for %s parameter %q", t.Kind, p.Name))
	}
}

// ForOutput returns the handler for an output.
func ForOutput(o plugin.Output) *OutputHandler {
	hint := "ARTIFACT"
	if o.Type.Kind == plugin.KindVisualization {
		hint = "VISUALIZATION"
	}
	return &OutputHandler{
		base: base{
			param: plugin.Param{Name: o.Name, Type: o.Type, Description: o.Description},
			opt: Option{
				Name:      plugin.OptionName(plugin.NamespaceOutput, o.Name),
				Namespace: plugin.NamespaceOutput,
				Arity:     ArityOne,
				Path:      true,
				ValueHint: hint,
			},
		},
		ext: o.Extension,
	}
}

// base carries what every handler shares.
type base struct {
	param plugin.Param
	opt   Option
}

func (b *base) Name() string             { return b.param.Name }
func (b *base) Option() Option           { return b.opt }
func (b *base) Type() plugin.Type        { return b.param.Type }
func (b *base) Default() *plugin.Literal { return b.param.Default }
func (b *base) Description() string      { return b.param.Description }
func (b *base) Required() bool           { return b.param.Default == nil }
func (b *base) Completions() []string    { return nil }

func (b *base) RenderHelp(l Layout) string {
	return renderHelp(l, b.opt, typeLabel(b.param.Type), b.param.Description, marker(b.param))
}

// omitted is the result for an option that was not given.
func (b *base) omitted() (ir.IRValue, bool, error) {
	def := b.param.Default
	switch {
	case def == nil:
		return nil, false, &diag.Error{
			Kind:    diag.MissingRequiredParameter,
			Option:  b.opt.Name,
			Message: "Missing option: " + b.opt.Name,
		}
	case def.Kind == plugin.LiteralNone:
		return nil, false, nil
	default:
		return def.Value(), true, nil
	}
}

// single extracts the one token of a non-repeatable option.
func (b *base) single(occ []Occurrence, fallback []string) (token string, supplied bool, err error) {
	switch {
	case len(occ) > 1:
		return "", false, conflicting(b.opt.Name+" was specified multiple times", b.opt.Name)
	case len(occ) == 1:
		switch len(occ[0].Values) {
		case 0:
			return "", false, missingValue(b.opt.Name)
		case 1:
			return occ[0].Values[0], true, nil
		default:
			return "", false, invalid(b.opt.Name, occ[0].Values[1], "is unexpected: %s takes a single value", b.opt.Name)
		}
	case len(fallback) == 1:
		return fallback[0], true, nil
	case len(fallback) > 1:
		return "", false, invalid(b.opt.Name, fallback[1], "is unexpected: %s takes a single value", b.opt.Name)
	}
	return "", false, nil
}

func invalid(option, value, format string, args ...any) *diag.Error {
	return &diag.Error{
		Kind:    diag.InvalidValue,
		Option:  option,
		Value:   value,
		Message: fmt.Sprintf("Invalid value for %s: %q %s", option, value, fmt.Sprintf(format, args...)),
	}
}

func missingValue(option string) *diag.Error {
	return &diag.Error{Kind: diag.InvalidValue, Option: option, Message: option + " requires a value"}
}

func conflicting(msg, option string) *diag.Error {
	return &diag.Error{Kind: diag.ConflictingFlags, Option: option, Message: msg}
}
