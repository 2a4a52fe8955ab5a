// Package registry provides the plugin registry collaborator: the source of
// truth for which plugins are installed and what their actions look like.
package registry

import (
	"context"

	"github.com/roach88/pluma/internal/plugin"
)

// Registry lists installed plugins.
//
// Identities must be cheap: it runs on every invocation to fingerprint the
// installed set. Load is the expensive full introspection and only runs on
// a cache miss.
type Registry interface {
	Identities(ctx context.Context) ([]plugin.Identity, error)
	Load(ctx context.Context) ([]plugin.Plugin, error)
}

// Static is a Registry over a fixed descriptor set.
type Static []plugin.Plugin

// Identities implements Registry.
func (s Static) Identities(context.Context) ([]plugin.Identity, error) {
	ids := make([]plugin.Identity, len(s))
	for i, p := range s {
		ids[i] = p.Identity()
	}
	return ids, nil
}

// Load implements Registry.
func (s Static) Load(context.Context) ([]plugin.Plugin, error) {
	out := make([]plugin.Plugin, len(s))
	copy(out, s)
	return out, nil
}
