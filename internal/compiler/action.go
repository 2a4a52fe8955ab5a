package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/pluma/internal/plugin"
)

// CompileAction parses a CUE value into an Action.
// The value should be the action struct itself, e.g.:
//
//	v := ctx.CompileString(`action: alpha: { ... }`)
//	a, err := CompileAction(v.LookupPath(cue.ParsePath("action.alpha")))
//
// The action ID is taken from the struct label.
func CompileAction(v cue.Value) (*plugin.Action, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	action := &plugin.Action{Kind: plugin.KindMethod}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		action.ID = labels[len(labels)-1].String()
	}
	field := "action." + action.ID

	var err error
	if action.Name, err = lookupString(v, "name", field); err != nil {
		return nil, err
	}
	if action.Name == "" {
		action.Name = action.ID
	}
	if action.Description, err = lookupString(v, "description", field); err != nil {
		return nil, err
	}

	kind, err := lookupString(v, "kind", field)
	if err != nil {
		return nil, err
	}
	if kind != "" {
		action.Kind = plugin.ActionKind(kind)
	}

	if dv := v.LookupPath(cue.ParsePath("deprecated")); dv.Exists() {
		if action.Deprecated, err = dv.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if action.Inputs, err = compileParams(v, "inputs", field); err != nil {
		return nil, err
	}
	if action.Parameters, err = compileParams(v, "parameters", field); err != nil {
		return nil, err
	}

	outputsVal := v.LookupPath(cue.ParsePath("outputs"))
	if !outputsVal.Exists() {
		return nil, &CompileError{
			Field:   field + ".outputs",
			Message: "action outputs are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := outputsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		out, err := compileOutput(iter.Label(), iter.Value(), field+".outputs")
		if err != nil {
			return nil, err
		}
		action.Outputs = append(action.Outputs, *out)
	}

	return action, nil
}

// compileParams reads the ordered struct at v.<group>. A missing group is
// an empty list.
func compileParams(v cue.Value, group, field string) ([]plugin.Param, error) {
	groupVal := v.LookupPath(cue.ParsePath(group))
	if !groupVal.Exists() {
		return nil, nil
	}

	iter, err := groupVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var params []plugin.Param
	for iter.Next() {
		p, err := compileParam(iter.Label(), iter.Value(), field+"."+group)
		if err != nil {
			return nil, err
		}
		params = append(params, *p)
	}
	return params, nil
}

func compileParam(name string, v cue.Value, group string) (*plugin.Param, error) {
	field := group + "." + name

	typ, err := compileType(v, field)
	if err != nil {
		return nil, err
	}
	desc, err := lookupString(v, "description", field)
	if err != nil {
		return nil, err
	}

	param := &plugin.Param{Name: name, Type: typ, Description: desc}

	defVal := v.LookupPath(cue.ParsePath("default"))
	if defVal.Exists() {
		lit, err := compileLiteral(defVal)
		if err != nil {
			return nil, err
		}
		if lit.Kind == plugin.LiteralNone {
			param.Type = plugin.Optional(param.Type)
		}
		lit = widenFloatDefault(lit, param.Type.Base())
		if err := lit.Matches(param.Type); err != nil {
			return nil, &CompileError{Field: field + ".default", Message: err.Error(), Pos: defVal.Pos()}
		}
		param.Default = lit
	}

	return param, nil
}

// widenFloatDefault converts integer literals declared for Float types so
// that the executor always receives a float.
func widenFloatDefault(lit *plugin.Literal, t plugin.Type) *plugin.Literal {
	switch {
	case t.Kind == plugin.KindPrimitive && t.Name == plugin.Float && lit.Kind == plugin.LiteralInt:
		return plugin.FloatLit(float64(lit.Int))
	case t.Kind == plugin.KindCollection && t.Element != nil && lit.Kind == plugin.LiteralList:
		items := make([]plugin.Literal, len(lit.List))
		for i := range lit.List {
			items[i] = *widenFloatDefault(&lit.List[i], *t.Element)
		}
		return plugin.ListLit(items...)
	}
	return lit
}

func compileOutput(name string, v cue.Value, group string) (*plugin.Output, error) {
	field := group + "." + name

	typ, err := compileType(v, field)
	if err != nil {
		return nil, err
	}
	if typ.Kind != plugin.KindArtifact && typ.Kind != plugin.KindVisualization {
		return nil, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("output type must be an artifact or Visualization, got %s", typ),
			Pos:     v.Pos(),
		}
	}

	out := &plugin.Output{Name: name, Type: typ}
	if out.Description, err = lookupString(v, "description", field); err != nil {
		return nil, err
	}
	if out.Extension, err = lookupString(v, "extension", field); err != nil {
		return nil, err
	}
	if out.Extension == "" {
		out.Extension = plugin.DefaultExtension(typ)
	}
	if out.Extension[0] != '.' {
		out.Extension = "." + out.Extension
	}
	return out, nil
}

// compileType parses the type expression plus any choices/range predicate.
func compileType(v cue.Value, field string) (plugin.Type, error) {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return plugin.Type{}, &CompileError{Field: field + ".type", Message: "type is required", Pos: v.Pos()}
	}
	expr, err := typeVal.String()
	if err != nil {
		return plugin.Type{}, formatCUEError(err)
	}
	typ, err := plugin.ParseType(expr)
	if err != nil {
		return plugin.Type{}, &CompileError{Field: field + ".type", Message: err.Error(), Pos: typeVal.Pos()}
	}

	pred, err := compilePredicate(v, field)
	if err != nil {
		return plugin.Type{}, err
	}
	if pred == nil {
		return typ, nil
	}

	// A predicate applies to the primitive itself or to a collection's
	// elements.
	target := &typ
	if typ.Kind == plugin.KindCollection {
		target = typ.Element
	}
	if target.Kind != plugin.KindPrimitive {
		return plugin.Type{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("choices and range only apply to primitive types, not %s", typ),
			Pos:     v.Pos(),
		}
	}
	if pred.Range != nil && target.Name != plugin.Int && target.Name != plugin.Float {
		return plugin.Type{}, &CompileError{Field: field + ".range", Message: "range requires Int or Float", Pos: v.Pos()}
	}
	target.Predicate = pred
	return typ, nil
}

func compilePredicate(v cue.Value, field string) (*plugin.Predicate, error) {
	var pred plugin.Predicate

	if cv := v.LookupPath(cue.ParsePath("choices")); cv.Exists() {
		iter, err := cv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			pred.Choices = append(pred.Choices, s)
		}
		if len(pred.Choices) == 0 {
			return nil, &CompileError{Field: field + ".choices", Message: "choices must not be empty", Pos: cv.Pos()}
		}
	}

	if rv := v.LookupPath(cue.ParsePath("range")); rv.Exists() {
		r := &plugin.Range{MinInclusive: true}
		var err error
		if r.Min, err = lookupNumber(rv, "min"); err != nil {
			return nil, err
		}
		if r.Max, err = lookupNumber(rv, "max"); err != nil {
			return nil, err
		}
		for _, b := range []struct {
			name string
			dst  *bool
		}{{"min_inclusive", &r.MinInclusive}, {"max_inclusive", &r.MaxInclusive}} {
			if bv := rv.LookupPath(cue.ParsePath(b.name)); bv.Exists() {
				if *b.dst, err = bv.Bool(); err != nil {
					return nil, formatCUEError(err)
				}
			}
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return nil, &CompileError{Field: field + ".range", Message: "range min exceeds max", Pos: rv.Pos()}
		}
		pred.Range = r
	}

	if pred.Choices == nil && pred.Range == nil {
		return nil, nil
	}
	return &pred, nil
}

// compileLiteral converts a concrete CUE value into a default literal.
func compileLiteral(v cue.Value) (*plugin.Literal, error) {
	switch v.Kind() {
	case cue.NullKind:
		return plugin.None(), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return plugin.StringLit(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return plugin.IntLit(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return plugin.FloatLit(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return plugin.BoolLit(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var items []plugin.Literal
		for iter.Next() {
			item, err := compileLiteral(iter.Value())
			if err != nil {
				return nil, err
			}
			if item.Kind == plugin.LiteralList || item.Kind == plugin.LiteralNone {
				return nil, &CompileError{Field: "default", Message: "list defaults must hold scalars", Pos: iter.Value().Pos()}
			}
			items = append(items, *item)
		}
		return plugin.ListLit(items...), nil
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("default must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func lookupString(v cue.Value, path, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", &CompileError{Field: field + "." + path, Message: "must be a string", Pos: sv.Pos()}
	}
	return s, nil
}

func lookupNumber(v cue.Value, path string) (*float64, error) {
	nv := v.LookupPath(cue.ParsePath(path))
	if !nv.Exists() || nv.Kind() == cue.NullKind {
		return nil, nil
	}
	f, err := nv.Float64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return &f, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
