// Package complete answers shell completion queries against the command
// tree and renders the shell scripts that issue them.
package complete

import (
	"slices"
	"strings"

	"github.com/roach88/pluma/internal/dispatch"
	"github.com/roach88/pluma/internal/handler"
	"github.com/roach88/pluma/internal/tree"
)

// Candidates returns the completions for words, the command line after the
// program name. The last word is the one being completed and may be
// empty. extra names builtin commands offered next to the plugins at the
// root.
//
// An empty result after an option that takes a path tells the shell to
// complete file names instead.
func Candidates(root *tree.Node, words []string, extra []string) []string {
	if len(words) == 0 {
		words = []string{""}
	}
	current := words[len(words)-1]

	node, rest, err := dispatch.Resolve(root, words[:len(words)-1])
	if err != nil {
		return nil
	}
	if node.Kind == tree.Group {
		if len(rest) > 0 {
			return nil
		}
		names := visibleChildren(node)
		if node == root {
			names = append(names, extra...)
			slices.Sort(names)
			names = slices.Compact(names)
		}
		return withPrefix(names, current)
	}
	return leafCandidates(node, rest, current)
}

func visibleChildren(n *tree.Node) []string {
	var names []string
	for _, c := range n.Children {
		if c.Action != nil && c.Action.Deprecated {
			continue
		}
		names = append(names, c.Name)
	}
	slices.Sort(names)
	return names
}

func leafCandidates(leaf *tree.Node, args []string, current string) []string {
	if strings.Contains(current, "=") {
		return nil
	}

	// values a bool flag may take; its option names are still offered.
	var literals []string
	if n := len(args); n > 0 {
		prev := args[n-1]
		if h := leaf.Handler(prev); h != nil {
			opt := h.Option()
			if opt.Path {
				return nil
			}
			if values := h.Completions(); len(values) > 0 && prev != opt.Negated {
				if opt.Arity != handler.ArityFlag {
					return withPrefix(values, current)
				}
				if !strings.HasPrefix(current, "-") {
					literals = withPrefix(values, current)
				}
			} else if opt.Arity == handler.ArityOne {
				return nil
			}
		}
		for _, m := range dispatch.MetaOptions() {
			if prev == m.Name && m.Arity == handler.ArityOne {
				return nil
			}
		}
	}

	if current != "" && !strings.HasPrefix(current, "-") {
		return literals
	}

	used := make(map[string]bool, len(args))
	for _, a := range args {
		name, _, _ := strings.Cut(a, "=")
		used[name] = true
	}

	var names []string
	for _, h := range leaf.Handlers {
		opt := h.Option()
		spellings := opt.Names()
		if !opt.Repeatable && slices.ContainsFunc(spellings, func(s string) bool { return used[s] }) {
			continue
		}
		names = append(names, spellings...)
	}
	for _, m := range dispatch.MetaOptions() {
		if !used[m.Name] {
			names = append(names, m.Name)
		}
	}
	return append(literals, withPrefix(names, current)...)
}

func withPrefix(candidates []string, prefix string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}
