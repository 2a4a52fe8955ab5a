package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CmdConfig holds fallback option values, keyed by "<plugin>.<action>" and
// then by option name with its leading dashes, e.g.
//
//	diversity.alpha:
//	  p-metric: simpson
//	  m-metadata-file: [a.tsv, b.tsv]
type CmdConfig map[string]map[string][]string

// LoadCmdConfig reads a cmd-config YAML file.
func LoadCmdConfig(path string) (CmdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load cmd-config: %w", err)
	}
	cc, err := ParseCmdConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cc, nil
}

// ParseCmdConfig decodes cmd-config content. Values are scalars or lists
// of scalars.
func ParseCmdConfig(data []byte) (CmdConfig, error) {
	var raw map[string]map[string]yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse cmd-config: %w", err)
	}

	cc := make(CmdConfig, len(raw))
	for section, options := range raw {
		if !strings.Contains(section, ".") {
			return nil, fmt.Errorf("parse cmd-config: section %q is not <plugin>.<action>", section)
		}
		values := make(map[string][]string, len(options))
		for option, node := range options {
			vs, err := scalars(node)
			if err != nil {
				return nil, fmt.Errorf("parse cmd-config: %s: %s: %w", section, option, err)
			}
			values["--"+strings.TrimLeft(option, "-")] = vs
		}
		cc[section] = values
	}
	return cc, nil
}

func scalars(node yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: list items must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: value must be a scalar or a list", node.Line)
	}
}

// Fallback returns the values configured for one option of an action,
// or nil. option includes its leading dashes.
func (c CmdConfig) Fallback(plugin, action, option string) []string {
	if c == nil {
		return nil
	}
	return c[plugin+"."+action][option]
}
