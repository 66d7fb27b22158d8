package workflow

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

//go:embed definitions.yaml
var builtinDefinitions []byte

// catalogue is the on-disk shape of a workflow file.
type catalogue struct {
	Workflows []Workflow `yaml:"workflows" toml:"workflows"`
}

// ParseYAML decodes a workflow catalogue from YAML bytes.
func ParseYAML(data []byte) ([]Workflow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("workflow: definition payload is empty")
	}
	var c catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("workflow: decode yaml: %w", err)
	}
	return c.Workflows, nil
}

// ParseTOML decodes a workflow catalogue from TOML bytes. Workflows are
// declared as [[workflows]] tables.
func ParseTOML(data []byte) ([]Workflow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("workflow: definition payload is empty")
	}
	var c catalogue
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("workflow: decode toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("workflow: unknown toml keys: %v", undecoded)
	}
	return c.Workflows, nil
}

// LoadFile reads path and registers every workflow it declares. The format
// is chosen by extension: .yaml/.yml or .toml.
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("workflow: read %s: %w", path, err)
	}

	var defs []Workflow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		defs, err = ParseYAML(data)
	case ".toml":
		defs, err = ParseTOML(data)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return 0, fmt.Errorf("workflow: %s: %w", path, err)
	}
	return r.registerAll(defs, path)
}

func (r *Registry) registerAll(defs []Workflow, source string) (int, error) {
	for i, w := range defs {
		if err := r.Register(w); err != nil {
			return i, fmt.Errorf("workflow: %s entry %d: %w", source, i, err)
		}
	}
	return len(defs), nil
}

// NewBuiltinRegistry returns a registry holding the embedded catalogue.
func NewBuiltinRegistry() (*Registry, error) {
	defs, err := ParseYAML(builtinDefinitions)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	if _, err := r.registerAll(defs, "builtin"); err != nil {
		return nil, err
	}
	return r, nil
}
