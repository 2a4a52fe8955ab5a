package compiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the file that marks a directory as a plugin.
const ManifestFile = "plugin.yaml"

// Manifest is the identity half of a plugin, as written in plugin.yaml.
// Action signatures live next to it in CUE files.
type Manifest struct {
	Name             string `yaml:"name"`
	Version          string `yaml:"version"`
	Website          string `yaml:"website"`
	Citation         string `yaml:"citation"`
	UserSupport      string `yaml:"user_support"`
	Description      string `yaml:"description"`
	ShortDescription string `yaml:"short_description"`
	Executable       string `yaml:"executable"`
}

// ReadManifest reads and decodes a plugin.yaml file. Unknown keys are
// rejected so that typos surface at validation time.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%s: name is required", path)
	}
	if m.Version == "" {
		return nil, fmt.Errorf("%s: version is required", path)
	}
	return &m, nil
}
