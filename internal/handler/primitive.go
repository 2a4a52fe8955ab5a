package handler

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
)

// converter parses a single token.
type converter interface {
	convert(option, token string) (ir.IRValue, error)
}

func converterFor(t plugin.Type) converter {
	if t.Kind == plugin.KindArtifact {
		return artifactConverter{}
	}
	return primitiveConverter{typ: t}
}

type primitiveConverter struct {
	typ plugin.Type
}

func (c primitiveConverter) convert(option, token string) (ir.IRValue, error) {
	var (
		v ir.IRValue
		x float64
	)
	switch c.typ.Name {
	case plugin.Str:
		v = ir.IRString(token)
	case plugin.Int:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, invalid(option, token, "is not a valid integer")
		}
		v, x = ir.IRInt(n), float64(n)
	case plugin.Float:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid(option, token, "is not a valid number")
		}
		v, x = ir.IRFloat(f), f
	case plugin.Bool:
		b, ok := parseBool(token)
		if !ok {
			return nil, invalid(option, token, "is not one of true, false")
		}
		v = ir.IRBool(b)
	default:
		return nil, invalid(option, token, "has unsupported type %s", c.typ)
	}

	if pred := c.typ.Predicate; pred != nil {
		if len(pred.Choices) > 0 && !slices.Contains(pred.Choices, token) {
			return nil, invalid(option, token, "is not one of %s", strings.Join(pred.Choices, ", "))
		}
		if pred.Range != nil && !pred.Range.Contains(x) {
			return nil, invalid(option, token, "is not in the range %s", pred.Range)
		}
	}
	return v, nil
}

func parseBool(token string) (bool, bool) {
	switch token {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// primitiveHandler handles Str, Int and Float parameters.
type primitiveHandler struct {
	base
	typ plugin.Type
}

func (h *primitiveHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	token, ok, err := h.single(occ, fallback)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return h.omitted()
	}
	v, err := primitiveConverter{typ: h.typ}.convert(h.opt.Name, token)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (h *primitiveHandler) Completions() []string {
	if h.typ.Predicate != nil {
		return slices.Clone(h.typ.Predicate.Choices)
	}
	return nil
}

// boolHandler handles Bool parameters as a --p-NAME / --p-no-NAME pair.
// The positive spelling optionally takes a literal true or false.
type boolHandler struct {
	base
}

func (h *boolHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	var pos, neg int
	for _, o := range occ {
		if o.Name == h.opt.Negated {
			neg++
		} else {
			pos++
		}
	}
	switch {
	case pos > 0 && neg > 0:
		return nil, false, conflicting(h.opt.Name+" and "+h.opt.Negated+" cannot be used together", h.opt.Name)
	case len(occ) > 1:
		return nil, false, conflicting(occ[0].Name+" was specified multiple times", occ[0].Name)
	case len(occ) == 1:
		return h.occurrence(occ[0])
	case len(fallback) > 0:
		return h.token(h.opt.Name, fallback)
	}
	return h.omitted()
}

func (h *boolHandler) occurrence(o Occurrence) (ir.IRValue, bool, error) {
	if o.Name == h.opt.Negated {
		if len(o.Values) > 0 {
			return nil, false, invalid(o.Name, o.Values[0], "is unexpected: %s takes no value", o.Name)
		}
		return ir.IRBool(false), true, nil
	}
	if len(o.Values) == 0 {
		return ir.IRBool(true), true, nil
	}
	return h.token(o.Name, o.Values)
}

func (h *boolHandler) token(option string, values []string) (ir.IRValue, bool, error) {
	if len(values) > 1 {
		return nil, false, invalid(option, values[1], "is unexpected: %s takes a single value", option)
	}
	b, ok := parseBool(values[0])
	if !ok {
		return nil, false, invalid(option, values[0], "is not one of true, false")
	}
	return ir.IRBool(b), true, nil
}

func (h *boolHandler) Completions() []string {
	return []string{"true", "false"}
}

// unionHandler tries each primitive member in declaration order.
type unionHandler struct {
	base
	members []plugin.Type
}

func (h *unionHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	token, ok, err := h.single(occ, fallback)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return h.omitted()
	}
	for _, m := range h.members {
		if v, err := converterFor(m).convert(h.opt.Name, token); err == nil {
			return v, true, nil
		}
	}
	return nil, false, invalid(h.opt.Name, token, "does not match %s", h.param.Type)
}

func (h *unionHandler) Completions() []string {
	var out []string
	for _, m := range h.members {
		if m.Kind == plugin.KindPrimitive && m.Name == plugin.Bool {
			out = append(out, "true", "false")
		}
		if m.Predicate != nil {
			out = append(out, m.Predicate.Choices...)
		}
	}
	return out
}

// noneToken selects the explicit absent value of an optional parameter.
const noneToken = "none"

// optionalHandler wraps the handler of T for an optional-of-T parameter.
// The token "none" resolves to ir.IRNull; anything else goes to T.
type optionalHandler struct {
	Handler
	typ plugin.Type
}

func (h *optionalHandler) Type() plugin.Type { return h.typ }

func (h *optionalHandler) Required() bool { return false }

func (h *optionalHandler) Option() Option {
	opt := h.Handler.Option()
	if opt.Arity == ArityFlag {
		opt.Literals = append(slices.Clone(opt.Literals), noneToken)
	}
	return opt
}

func (h *optionalHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	if len(occ) == 1 && isNone(occ[0].Values) || len(occ) == 0 && isNone(fallback) {
		return ir.IRNull{}, true, nil
	}
	v, present, err := h.Handler.Resolve(occ, fallback)
	if err != nil || present {
		return v, present, err
	}
	// An optional without a default is simply left out.
	return nil, false, nil
}

func (h *optionalHandler) Completions() []string {
	values := h.Handler.Completions()
	if len(values) == 0 {
		return nil
	}
	return append(values, noneToken)
}

func isNone(values []string) bool {
	return len(values) == 1 && values[0] == noneToken
}

func primitiveHint(t plugin.Type) string {
	switch t.Name {
	case plugin.Int:
		return "INTEGER"
	case plugin.Float:
		return "NUMBER"
	case plugin.Bool:
		return "BOOLEAN"
	}
	return "TEXT"
}

func elementHint(t plugin.Type) string {
	if t.Kind == plugin.KindArtifact {
		return "ARTIFACTS"
	}
	return primitiveHint(t)
}
