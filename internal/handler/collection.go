package handler

import (
	"strings"

	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
)

// collectionHandler handles List[T] and Set[T]. Values accumulate across
// repeated occurrences in command-line order. A single token holding
// commas is split when T is primitive.
type collectionHandler struct {
	base
	typ  plugin.Type
	elem converter
}

func (h *collectionHandler) Resolve(occ []Occurrence, fallback []string) (ir.IRValue, bool, error) {
	var tokens []string
	for _, o := range occ {
		if len(o.Values) == 0 {
			return nil, false, missingValue(o.Name)
		}
		tokens = append(tokens, o.Values...)
	}
	if len(occ) == 0 {
		tokens = fallback
	}
	if len(tokens) == 0 {
		return h.omitted()
	}
	if len(tokens) == 1 && h.typ.Element.Kind == plugin.KindPrimitive && strings.Contains(tokens[0], ",") {
		tokens = strings.Split(tokens[0], ",")
	}

	values := make(ir.IRArray, 0, len(tokens))
	for _, tok := range tokens {
		v, err := h.elem.convert(h.opt.Name, tok)
		if err != nil {
			return nil, false, err
		}
		if h.typ.Name == plugin.Set && containsValue(values, v) {
			return nil, false, invalid(h.opt.Name, tok, "is repeated: %s elements must be unique", h.typ)
		}
		values = append(values, v)
	}
	return values, true, nil
}

func (h *collectionHandler) Completions() []string {
	elem := *h.typ.Element
	switch {
	case elem.Kind == plugin.KindPrimitive && elem.Name == plugin.Bool:
		return []string{"true", "false"}
	case elem.Predicate != nil && len(elem.Predicate.Choices) > 0:
		return append([]string(nil), elem.Predicate.Choices...)
	}
	return nil
}

func containsValue(values ir.IRArray, v ir.IRValue) bool {
	for _, have := range values {
		if ir.Equal(have, v) {
			return true
		}
	}
	return false
}
