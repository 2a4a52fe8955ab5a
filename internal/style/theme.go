package style

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// ParseTheme decodes a theme file. Unknown style names and fields are
// rejected.
func ParseTheme(data []byte) (Looks, error) {
	var looks Looks
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&looks); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse theme: %w", err)
	}
	for name := range looks {
		if !slices.Contains(Names, name) {
			return nil, fmt.Errorf("parse theme: unknown style %q", name)
		}
	}
	return looks, nil
}

// LoadTheme reads a theme file. A missing file yields no overrides.
func LoadTheme(path string) (Looks, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load theme: %w", err)
	}
	looks, err := ParseTheme(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return looks, nil
}

// WriteDefaults writes the built-in theme as YAML.
func WriteDefaults(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Defaults()); err != nil {
		return fmt.Errorf("export theme: %w", err)
	}
	return enc.Close()
}

// Import validates the theme at src and installs it at dst.
func Import(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("import theme: %w", err)
	}
	if _, err := ParseTheme(data); err != nil {
		return fmt.Errorf("import theme: %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("import theme: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("import theme: %w", err)
	}
	return nil
}

// Reset removes an installed theme. Removing a theme that is not
// installed is not an error.
func Reset(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reset theme: %w", err)
	}
	return nil
}
