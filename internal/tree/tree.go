// Package tree builds the command hierarchy from plugin descriptors.
//
// The root has one group per plugin and each group one leaf per action.
// Building is pure: the same descriptor set always yields the same tree,
// with children and handlers in a fixed order.
package tree

import (
	"fmt"
	"sort"

	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/handler"
	"github.com/roach88/pluma/internal/plugin"
)

// Kind distinguishes groups from leaves.
type Kind int

const (
	Group Kind = iota
	Leaf
)

// Node is one command in the tree.
type Node struct {
	Name     string
	Summary  string
	Help     string
	Kind     Kind
	Parent   *Node
	Children []*Node

	// Plugin is set on plugin groups and on leaves.
	Plugin *plugin.Plugin
	// Action and Handlers are set on leaves. Handlers are ordered inputs,
	// parameters, metadata, outputs, each in declaration order.
	Action   *plugin.Action
	Handlers []handler.Handler
}

// Build constructs the tree for a descriptor set. Plugins without actions
// are left out.
func Build(plugins []plugin.Plugin) (*Node, error) {
	root := &Node{Name: "pluma", Kind: Group}

	sorted := make([]plugin.Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p.HasActions() {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return plugin.CLIName(sorted[i].Name) < plugin.CLIName(sorted[j].Name)
	})

	for i := range sorted {
		group, err := buildGroup(&sorted[i])
		if err != nil {
			return nil, err
		}
		if err := root.add(group); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func buildGroup(p *plugin.Plugin) (*Node, error) {
	group := &Node{
		Name:    plugin.CLIName(p.Name),
		Summary: p.ShortDescription,
		Help:    p.Description,
		Kind:    Group,
		Plugin:  p,
	}

	actions := make([]*plugin.Action, len(p.Actions))
	for i := range p.Actions {
		actions[i] = &p.Actions[i]
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return plugin.CLIName(actions[i].ID) < plugin.CLIName(actions[j].ID)
	})

	for _, a := range actions {
		leaf, err := buildLeaf(p, a)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name, err)
		}
		if err := group.add(leaf); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name, err)
		}
	}
	return group, nil
}

func buildLeaf(p *plugin.Plugin, a *plugin.Action) (*Node, error) {
	leaf := &Node{
		Name:    plugin.CLIName(a.ID),
		Summary: a.Name,
		Help:    a.Description,
		Kind:    Leaf,
		Plugin:  p,
		Action:  a,
	}

	for _, in := range a.Inputs {
		leaf.Handlers = append(leaf.Handlers, handler.For(plugin.NamespaceInput, in))
	}
	for _, prm := range a.Parameters {
		if plugin.ParameterNamespace(prm.Type) == plugin.NamespaceParameter {
			leaf.Handlers = append(leaf.Handlers, handler.For(plugin.NamespaceParameter, prm))
		}
	}
	for _, prm := range a.Parameters {
		if plugin.ParameterNamespace(prm.Type) == plugin.NamespaceMetadata {
			leaf.Handlers = append(leaf.Handlers, handler.For(plugin.NamespaceMetadata, prm))
		}
	}
	for _, out := range a.Outputs {
		leaf.Handlers = append(leaf.Handlers, handler.ForOutput(out))
	}

	seen := make(map[string]string)
	for _, h := range leaf.Handlers {
		for _, name := range h.Option().Names() {
			if prev, ok := seen[name]; ok {
				return nil, fmt.Errorf("action %s: %s and %s both map to option %s", a.ID, prev, h.Name(), name)
			}
			seen[name] = h.Name()
		}
	}
	return leaf, nil
}

func (n *Node) add(child *Node) error {
	if existing := n.Child(child.Name); existing != nil {
		return fmt.Errorf("command name collision: %q is used twice under %q", child.Name, n.Name)
	}
	child.Parent = n
	n.Children = append(n.Children, child)
	return nil
}

// Child returns the direct child called name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildNames returns the names of the direct children, in order.
func (n *Node) ChildNames() []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

// Path returns the command path from the root, e.g. "pluma diversity alpha".
func (n *Node) Path() string {
	if n.Parent == nil {
		return n.Name
	}
	return n.Parent.Path() + " " + n.Name
}

// Walk visits n and its descendants depth first, in child order. It stops
// when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Handler returns the leaf handler owning option name (either spelling).
func (n *Node) Handler(name string) handler.Handler {
	for _, h := range n.Handlers {
		for _, candidate := range h.Option().Names() {
			if candidate == name {
				return h
			}
		}
	}
	return nil
}

// Suggest returns an UnknownCommand error for a name that is not a child
// of n, listing the closest children.
func (n *Node) Suggest(name string) *diag.Error {
	return &diag.Error{
		Kind:        diag.UnknownCommand,
		Option:      name,
		Value:       name,
		Message:     fmt.Sprintf("No such command %q under %q", name, n.Path()),
		Suggestions: diag.CloseMatches(name, n.ChildNames()),
	}
}
