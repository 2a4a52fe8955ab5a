// Package config locates the application directory and loads the user
// configuration and per-action cmd-config files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Resolve.
const (
	EnvHome       = "PLUMA_HOME"
	EnvPluginPath = "PLUMA_PLUGIN_PATH"
	EnvConda      = "CONDA_PREFIX"
)

// Color modes accepted in config.yaml.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// AppDir is the directory holding pluma's configuration and state.
type AppDir string

// Locate returns the application directory. PLUMA_HOME wins, then the
// active conda environment, then the user configuration directory.
func Locate(getenv func(string) string) (AppDir, error) {
	if dir := getenv(EnvHome); dir != "" {
		return AppDir(dir), nil
	}
	if prefix := getenv(EnvConda); prefix != "" {
		return AppDir(filepath.Join(prefix, "var", "pluma")), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate app dir: %w", err)
	}
	return AppDir(filepath.Join(base, "pluma")), nil
}

func (d AppDir) ConfigFile() string  { return filepath.Join(string(d), "config.yaml") }
func (d AppDir) CacheFile() string   { return filepath.Join(string(d), "cache", "registry.cbor") }
func (d AppDir) JournalFile() string { return filepath.Join(string(d), "history.db") }
func (d AppDir) ThemeFile() string   { return filepath.Join(string(d), "theme.yaml") }
func (d AppDir) PluginDir() string   { return filepath.Join(string(d), "plugins") }

// Config is the contents of config.yaml.
type Config struct {
	PluginPaths []string `yaml:"plugin_paths,omitempty"`
	Journal     *bool    `yaml:"journal,omitempty"`
	Color       string   `yaml:"color,omitempty"`
	Theme       string   `yaml:"theme,omitempty"`
}

// JournalEnabled reports whether invocations are recorded. Defaults to true.
func (c *Config) JournalEnabled() bool {
	return c.Journal == nil || *c.Journal
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Color {
	case "", ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("color: %q is not one of auto, always, never", c.Color)
	}
	return nil
}

// Parse decodes config.yaml content. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Settings is the fully resolved runtime configuration.
type Settings struct {
	Dir AppDir
	*Config
}

// Resolve locates the app dir and loads its config.yaml, applying
// environment overrides.
func Resolve(getenv func(string) string) (*Settings, error) {
	dir, err := Locate(getenv)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(dir.ConfigFile())
	if err != nil {
		return nil, err
	}
	return &Settings{Dir: dir, Config: cfg}, nil
}

// PluginPaths returns the directories scanned for plugins, in priority
// order. PLUMA_PLUGIN_PATH replaces plugin_paths; when neither is set the
// app dir's plugins directory is used.
func (s *Settings) PluginPaths(getenv func(string) string) []string {
	if env := getenv(EnvPluginPath); env != "" {
		return filepath.SplitList(env)
	}
	if len(s.Config.PluginPaths) > 0 {
		return s.Config.PluginPaths
	}
	return []string{s.Dir.PluginDir()}
}

// ThemeFile returns the theme file to apply: the configured one, or the
// app dir's theme.yaml.
func (s *Settings) ThemeFile() string {
	if s.Theme != "" {
		return s.Theme
	}
	return s.Dir.ThemeFile()
}
