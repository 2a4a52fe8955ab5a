package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/pluma/internal/compiler"
	"github.com/roach88/pluma/internal/plugin"
)

// Dir discovers plugins on the filesystem. Each search path is either a
// plugin directory itself (it holds a plugin.yaml) or a directory whose
// immediate subdirectories are plugin directories.
//
// When two paths provide a plugin with the same name the earlier path wins.
type Dir struct {
	Paths  []string
	Logger *slog.Logger
}

// NewDir creates a filesystem registry over the given search paths.
func NewDir(paths ...string) *Dir {
	return &Dir{Paths: paths, Logger: slog.Default()}
}

type found struct {
	dir      string
	manifest *compiler.Manifest
}

// scan locates plugin directories and reads their manifests.
func (d *Dir) scan(ctx context.Context) ([]found, error) {
	var out []found
	seen := make(map[string]string)

	for _, root := range d.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dirs, err := pluginDirs(root)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			m, err := compiler.ReadManifest(filepath.Join(dir, compiler.ManifestFile))
			if err != nil {
				return nil, err
			}
			if prev, ok := seen[m.Name]; ok {
				d.logger().Warn("duplicate plugin ignored", "plugin", m.Name, "dir", dir, "kept", prev)
				continue
			}
			seen[m.Name] = dir
			out = append(out, found{dir: dir, manifest: m})
		}
	}
	return out, nil
}

func pluginDirs(root string) ([]string, error) {
	if isPluginDir(root) {
		return []string{root}, nil
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		// A configured path that does not exist contributes nothing.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan plugin path %s: %w", root, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if isPluginDir(dir) {
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func isPluginDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, compiler.ManifestFile))
	return err == nil && info.Mode().IsRegular()
}

// Identities implements Registry. It reads manifests and hashes plugin
// files, but compiles nothing.
func (d *Dir) Identities(ctx context.Context) ([]plugin.Identity, error) {
	plugins, err := d.scan(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]plugin.Identity, 0, len(plugins))
	for _, f := range plugins {
		hash, err := ContentHash(f.dir)
		if err != nil {
			return nil, err
		}
		ids = append(ids, plugin.Identity{Name: f.manifest.Name, Version: f.manifest.Version, ContentHash: hash})
	}
	return ids, nil
}

// Load implements Registry. Every plugin is compiled; the first plugin
// that fails to compile fails the whole load, since a partially
// introspected set must not be cached.
func (d *Dir) Load(ctx context.Context) ([]plugin.Plugin, error) {
	plugins, err := d.scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]plugin.Plugin, 0, len(plugins))
	for _, f := range plugins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.logger().Debug("compiling plugin", "plugin", f.manifest.Name, "dir", f.dir)

		result, errs := compiler.LoadPlugin(f.dir, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return nil, fmt.Errorf("plugin %s: %w", f.manifest.Name, errs[0])
		}
		hash, err := ContentHash(f.dir)
		if err != nil {
			return nil, err
		}
		result.Plugin.ContentHash = hash
		out = append(out, result.Plugin)
	}
	return out, nil
}

func (d *Dir) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
