package plugin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pluma/internal/ir"
)

// LiteralKind tags the variant of a Literal.
type LiteralKind string

const (
	LiteralNone   LiteralKind = "none"
	LiteralString LiteralKind = "string"
	LiteralInt    LiteralKind = "int"
	LiteralFloat  LiteralKind = "float"
	LiteralBool   LiteralKind = "bool"
	LiteralList   LiteralKind = "list"
)

// Literal is a default value as declared in an action signature.
// It is a plain struct so that it survives the registry cache round trip
// unchanged.
type Literal struct {
	Kind  LiteralKind `cbor:"kind" json:"kind"`
	Str   string      `cbor:"str,omitempty" json:"str,omitempty"`
	Int   int64       `cbor:"int,omitempty" json:"int,omitempty"`
	Float float64     `cbor:"float,omitempty" json:"float,omitempty"`
	Bool  bool        `cbor:"bool,omitempty" json:"bool,omitempty"`
	List  []Literal   `cbor:"list,omitempty" json:"list,omitempty"`
}

// None is the default of an optional parameter that defaults to no value.
func None() *Literal { return &Literal{Kind: LiteralNone} }

// StringLit returns a string literal.
func StringLit(s string) *Literal { return &Literal{Kind: LiteralString, Str: s} }

// IntLit returns an integer literal.
func IntLit(n int64) *Literal { return &Literal{Kind: LiteralInt, Int: n} }

// FloatLit returns a float literal.
func FloatLit(f float64) *Literal { return &Literal{Kind: LiteralFloat, Float: f} }

// BoolLit returns a boolean literal.
func BoolLit(b bool) *Literal { return &Literal{Kind: LiteralBool, Bool: b} }

// ListLit returns a list literal.
func ListLit(items ...Literal) *Literal { return &Literal{Kind: LiteralList, List: items} }

// Value converts the literal to the value the executor receives.
func (l Literal) Value() ir.IRValue {
	switch l.Kind {
	case LiteralString:
		return ir.IRString(l.Str)
	case LiteralInt:
		return ir.IRInt(l.Int)
	case LiteralFloat:
		return ir.IRFloat(l.Float)
	case LiteralBool:
		return ir.IRBool(l.Bool)
	case LiteralList:
		arr := make(ir.IRArray, len(l.List))
		for i, item := range l.List {
			arr[i] = item.Value()
		}
		return arr
	default:
		return ir.IRNull{}
	}
}

// String renders the literal for help text.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralString:
		return strconv.Quote(l.Str)
	case LiteralInt:
		return strconv.FormatInt(l.Int, 10)
	case LiteralFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	case LiteralList:
		parts := make([]string, len(l.List))
		for i, item := range l.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "none"
	}
}

// Matches reports whether the literal is a valid default for t.
func (l Literal) Matches(t Type) error {
	if l.Kind == LiteralNone {
		if t.Kind != KindOptional {
			return fmt.Errorf("default none requires an optional type, got %s", t)
		}
		return nil
	}
	t = t.Base()

	switch t.Kind {
	case KindPrimitive:
		return l.matchesPrimitive(t)
	case KindUnion:
		for _, m := range t.Members {
			if l.matchesPrimitive(m) == nil {
				return nil
			}
		}
		return fmt.Errorf("default %s matches no member of %s", l, t)
	case KindCollection:
		if l.Kind != LiteralList {
			return fmt.Errorf("default for %s must be a list, got %s", t, l.Kind)
		}
		for i, item := range l.List {
			if err := item.matchesPrimitive(*t.Element); err != nil {
				return fmt.Errorf("default[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%s cannot have a default other than none", t)
	}
}

func (l Literal) matchesPrimitive(t Type) error {
	want := map[string]LiteralKind{Str: LiteralString, Int: LiteralInt, Float: LiteralFloat, Bool: LiteralBool}[t.Name]
	ok := l.Kind == want || t.Name == Float && l.Kind == LiteralInt
	if !ok {
		return fmt.Errorf("default %s is not a %s", l, t.Name)
	}
	if t.Predicate == nil {
		return nil
	}
	if len(t.Predicate.Choices) > 0 && l.Kind == LiteralString {
		for _, c := range t.Predicate.Choices {
			if c == l.Str {
				return nil
			}
		}
		return fmt.Errorf("default %s is not one of the choices", l)
	}
	if r := t.Predicate.Range; r != nil {
		x := l.Float
		if l.Kind == LiteralInt {
			x = float64(l.Int)
		}
		if !r.Contains(x) {
			return fmt.Errorf("default %s is outside %s", l, r)
		}
	}
	return nil
}
