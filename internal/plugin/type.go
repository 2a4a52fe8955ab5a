package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant of a semantic Type.
type Kind string

const (
	KindPrimitive      Kind = "primitive"
	KindCollection     Kind = "collection"
	KindArtifact       Kind = "artifact"
	KindVisualization  Kind = "visualization"
	KindMetadata       Kind = "metadata"
	KindMetadataColumn Kind = "metadata_column"
	KindUnion          Kind = "union"
	KindOptional       Kind = "optional"
)

// Primitive and collection names.
const (
	Str   = "Str"
	Int   = "Int"
	Float = "Float"
	Bool  = "Bool"
	List  = "List"
	Set   = "Set"
)

// Type is a semantic type. Which fields are meaningful depends on Kind:
//
//	primitive        Name (Str, Int, Float, Bool), Predicate
//	collection       Name (List, Set), Element
//	artifact         Name (the semantic type, e.g. FeatureTable[Frequency])
//	visualization    -
//	metadata         -
//	metadata_column  Name (e.g. MetadataColumn[Numeric])
//	union            Members (primitives, tried in order)
//	optional         Element
type Type struct {
	Kind      Kind       `cbor:"kind" json:"kind"`
	Name      string     `cbor:"name,omitempty" json:"name,omitempty"`
	Element   *Type      `cbor:"element,omitempty" json:"element,omitempty"`
	Members   []Type     `cbor:"members,omitempty" json:"members,omitempty"`
	Predicate *Predicate `cbor:"predicate,omitempty" json:"predicate,omitempty"`
}

// Predicate narrows a primitive's domain.
type Predicate struct {
	Choices []string `cbor:"choices,omitempty" json:"choices,omitempty"`
	Range   *Range   `cbor:"range,omitempty" json:"range,omitempty"`
}

// Range bounds a numeric primitive. A nil end is unbounded.
type Range struct {
	Min          *float64 `cbor:"min,omitempty" json:"min,omitempty"`
	Max          *float64 `cbor:"max,omitempty" json:"max,omitempty"`
	MinInclusive bool     `cbor:"min_inclusive" json:"min_inclusive"`
	MaxInclusive bool     `cbor:"max_inclusive" json:"max_inclusive"`
}

// Contains reports whether x lies within the range.
func (r Range) Contains(x float64) bool {
	if r.Min != nil {
		if r.MinInclusive && x < *r.Min || !r.MinInclusive && x <= *r.Min {
			return false
		}
	}
	if r.Max != nil {
		if r.MaxInclusive && x > *r.Max || !r.MaxInclusive && x >= *r.Max {
			return false
		}
	}
	return true
}

func (r Range) String() string {
	var b strings.Builder
	if r.MinInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Min != nil {
		b.WriteString(strconv.FormatFloat(*r.Min, 'g', -1, 64))
	}
	b.WriteString(", ")
	if r.Max != nil {
		b.WriteString(strconv.FormatFloat(*r.Max, 'g', -1, 64))
	}
	if r.MaxInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// Primitive returns a primitive type with no predicate.
func Primitive(name string) Type {
	return Type{Kind: KindPrimitive, Name: name}
}

// Optional wraps t so that it also accepts the "none" token.
func Optional(t Type) Type {
	if t.Kind == KindOptional {
		return t
	}
	return Type{Kind: KindOptional, Element: &t}
}

// Base strips an optional wrapper.
func (t Type) Base() Type {
	if t.Kind == KindOptional && t.Element != nil {
		return *t.Element
	}
	return t
}

// IsMetadata reports whether t (ignoring an optional wrapper) references
// metadata.
func (t Type) IsMetadata() bool {
	k := t.Base().Kind
	return k == KindMetadata || k == KindMetadataColumn
}

// IsArtifact reports whether t (ignoring an optional wrapper) is an
// artifact or a collection of artifacts.
func (t Type) IsArtifact() bool {
	b := t.Base()
	if b.Kind == KindCollection && b.Element != nil {
		b = *b.Element
	}
	return b.Kind == KindArtifact
}

// String renders t as a type expression, the inverse of ParseType.
func (t Type) String() string {
	switch t.Kind {
	case KindPrimitive:
		s := t.Name
		if t.Predicate != nil {
			if len(t.Predicate.Choices) > 0 {
				quoted := make([]string, len(t.Predicate.Choices))
				for i, c := range t.Predicate.Choices {
					quoted[i] = strconv.Quote(c)
				}
				s += " % Choices(" + strings.Join(quoted, ", ") + ")"
			}
			if t.Predicate.Range != nil {
				s += " % Range" + t.Predicate.Range.String()
			}
		}
		return s
	case KindCollection:
		elem := "?"
		if t.Element != nil {
			elem = t.Element.String()
		}
		return t.Name + "[" + elem + "]"
	case KindArtifact, KindMetadataColumn:
		return t.Name
	case KindVisualization:
		return "Visualization"
	case KindMetadata:
		return "Metadata"
	case KindUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return strings.Join(parts, " | ")
	case KindOptional:
		if t.Element != nil {
			return t.Element.String()
		}
	}
	return string(t.Kind)
}

// ParseType parses a type expression as written in an action signature:
//
//	Str | Int | Float | Bool
//	List[T] | Set[T]            T primitive or artifact
//	Metadata | MetadataColumn[Categorical] | Visualization
//	Int | Str                   union of primitives
//	FeatureTable[Frequency]     anything else is an artifact type
//
// Predicates are not part of the expression; they are attached separately.
func ParseType(expr string) (Type, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Type{}, fmt.Errorf("empty type expression")
	}

	members, err := splitTopLevel(expr, '|')
	if err != nil {
		return Type{}, fmt.Errorf("type %q: %w", expr, err)
	}
	if len(members) == 1 {
		return parseMember(members[0])
	}

	parsed := make([]Type, 0, len(members))
	artifacts := 0
	for _, m := range members {
		t, err := parseMember(m)
		if err != nil {
			return Type{}, fmt.Errorf("type %q: %w", expr, err)
		}
		switch t.Kind {
		case KindPrimitive:
		case KindArtifact:
			artifacts++
		default:
			return Type{}, fmt.Errorf("type %q: %s cannot appear in a union", expr, t)
		}
		parsed = append(parsed, t)
	}

	switch artifacts {
	case 0:
		return Type{Kind: KindUnion, Members: parsed}, nil
	case len(parsed):
		// A union of artifact types is still a single artifact reference.
		return Type{Kind: KindArtifact, Name: expr}, nil
	default:
		return Type{}, fmt.Errorf("type %q: cannot mix artifact and primitive types", expr)
	}
}

func parseMember(s string) (Type, error) {
	s = strings.TrimSpace(s)
	head, args, hasArgs := strings.Cut(s, "[")
	head = strings.TrimSpace(head)
	if hasArgs {
		if !strings.HasSuffix(args, "]") {
			return Type{}, fmt.Errorf("unbalanced brackets in %q", s)
		}
		args = strings.TrimSuffix(args, "]")
	}
	if head == "" {
		return Type{}, fmt.Errorf("missing type name in %q", s)
	}

	switch head {
	case Str, Int, Float, Bool:
		if hasArgs {
			return Type{}, fmt.Errorf("%s takes no type arguments", head)
		}
		return Primitive(head), nil
	case List, Set:
		if !hasArgs || strings.TrimSpace(args) == "" {
			return Type{}, fmt.Errorf("%s requires an element type", head)
		}
		elem, err := ParseType(args)
		if err != nil {
			return Type{}, err
		}
		if elem.Kind != KindPrimitive && elem.Kind != KindArtifact {
			return Type{}, fmt.Errorf("%s element must be a primitive or artifact type, got %s", head, elem)
		}
		return Type{Kind: KindCollection, Name: head, Element: &elem}, nil
	case "Metadata":
		if hasArgs {
			return Type{}, fmt.Errorf("Metadata takes no type arguments")
		}
		return Type{Kind: KindMetadata}, nil
	case "MetadataColumn":
		return Type{Kind: KindMetadataColumn, Name: s}, nil
	case "Visualization":
		return Type{Kind: KindVisualization}, nil
	}

	if !isTypeName(head) {
		return Type{}, fmt.Errorf("invalid type name %q", head)
	}
	return Type{Kind: KindArtifact, Name: s}, nil
}

// splitTopLevel splits s on sep outside of brackets.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets")
			}
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty union member")
		}
	}
	return parts, nil
}

func isTypeName(s string) bool {
	if s == "" || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}
