package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
	"github.com/roach88/pluma/internal/registry"
)

// Builder produces the full descriptor set on a cache miss.
type Builder func(ctx context.Context) ([]plugin.Plugin, error)

// Cache returns plugin descriptors, from storage when the installed set is
// unchanged and from the registry otherwise.
//
// A Cache writes storage at most once. It is not safe for concurrent use.
type Cache struct {
	registry registry.Registry
	storage  Storage
	logger   *slog.Logger
	now      func() time.Time
	tool     string
	force    bool

	written bool
	memo    *Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithTool overrides the tool version folded into the fingerprint.
func WithTool(version string) Option {
	return func(c *Cache) { c.tool = version }
}

// WithForceRefresh makes the first lookup ignore storage.
func WithForceRefresh(force bool) Option {
	return func(c *Cache) { c.force = force }
}

// New creates a cache over a registry and a storage backend.
func New(reg registry.Registry, storage Storage, opts ...Option) *Cache {
	c := &Cache{
		registry: reg,
		storage:  storage,
		logger:   slog.Default(),
		now:      time.Now,
		tool:     ir.ToolVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentFingerprint asks the registry for identities and returns the
// fingerprint of the installed set.
func (c *Cache) CurrentFingerprint(ctx context.Context) (string, error) {
	ids, err := c.registry.Identities(ctx)
	if err != nil {
		return "", &diag.Error{Kind: diag.RegistryUnavailable, Message: "could not list installed plugins", Err: err}
	}
	return Fingerprint(c.tool, ids)
}

// Plugins returns the descriptor set for the currently installed plugins.
func (c *Cache) Plugins(ctx context.Context) ([]plugin.Plugin, error) {
	fp, err := c.CurrentFingerprint(ctx)
	if err != nil {
		return nil, err
	}
	return c.GetOrBuild(ctx, fp, c.registry.Load)
}

// Refresh rebuilds from the registry regardless of storage and writes the
// result. Calling it again in the same process reuses the rebuilt set.
func (c *Cache) Refresh(ctx context.Context) ([]plugin.Plugin, error) {
	c.force = true
	return c.Plugins(ctx)
}

// GetOrBuild returns the stored descriptor set when its fingerprint equals
// fingerprint. Otherwise it calls build, persists the result and returns
// it. A corrupt or incompatible cache is a miss, never an error.
func (c *Cache) GetOrBuild(ctx context.Context, fingerprint string, build Builder) ([]plugin.Plugin, error) {
	if c.memo != nil && c.memo.Fingerprint == fingerprint {
		return c.memo.Plugins, nil
	}

	if !c.force {
		if entry := c.read(); entry != nil && entry.Tool == c.tool && entry.Fingerprint == fingerprint {
			c.logger.Debug("registry cache hit", "fingerprint", fingerprint)
			c.memo = entry
			return entry.Plugins, nil
		}
	}

	c.logger.Debug("rebuilding registry cache", "fingerprint", fingerprint)
	plugins, err := build(ctx)
	if err != nil {
		return nil, &diag.Error{Kind: diag.RegistryUnavailable, Message: "could not introspect installed plugins", Err: err}
	}

	built, err := Fingerprint(c.tool, identities(plugins))
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		Magic:       Magic,
		Format:      ir.CacheFormat,
		Tool:        c.tool,
		Fingerprint: built,
		CreatedAt:   c.now().Unix(),
		Plugins:     plugins,
	}
	c.force = false
	c.memo = entry

	if built != fingerprint {
		// The installed set changed between the identity scan and the
		// load. The memo is keyed by what was loaded; storage is not
		// written under a key it does not match.
		c.logger.Warn("plugins changed during introspection; cache not written",
			"requested", fingerprint, "loaded", built)
		return plugins, nil
	}
	c.write(entry)
	return plugins, nil
}

func (c *Cache) read() *Entry {
	data, err := c.storage.Load()
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err == nil {
		var entry *Entry
		if entry, err = Decode(data); err == nil {
			return entry
		}
	}
	c.logger.Warn("registry cache unreadable; rebuilding",
		"kind", string(diag.CacheCorrupt), "error", err)
	return nil
}

func (c *Cache) write(entry *Entry) {
	if c.written {
		return
	}
	c.written = true

	data, err := Encode(entry)
	if err == nil {
		err = c.storage.Store(data)
	}
	if err != nil {
		c.logger.Warn("registry cache not written", "error", err)
		return
	}
	c.logger.Debug("registry cache written", "fingerprint", entry.Fingerprint, "plugins", len(entry.Plugins))
}
