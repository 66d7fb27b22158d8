// Package workflow holds the catalogue of named workflows: ordered stage
// sequences with a flow pattern and an intent label.
//
// The built-in catalogue is embedded as YAML. Operators may extend it with
// YAML or TOML files listed in the configuration. Workflows are immutable
// once registered and the registry is read-only after startup.
package workflow

import (
	"fmt"
	"strings"
)

// FlowPattern selects the execution topology of a session.
type FlowPattern string

const (
	// Descending runs stages in registration order.
	Descending FlowPattern = "descending"
	// Ascending runs stages in reverse registration order.
	Ascending FlowPattern = "ascending"
	// Balancing routes the stage set to the pattern engine.
	Balancing FlowPattern = "balancing"
	// Lightning is handled only by the lightning flow controller.
	Lightning FlowPattern = "lightning"
)

// Valid reports whether p is a known flow pattern.
func (p FlowPattern) Valid() bool {
	switch p {
	case Descending, Ascending, Balancing, Lightning:
		return true
	}
	return false
}

// ParseFlowPattern parses a case-insensitive pattern name. Empty input
// yields Descending.
func ParseFlowPattern(s string) (FlowPattern, error) {
	if strings.TrimSpace(s) == "" {
		return Descending, nil
	}
	p := FlowPattern(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFlowPattern, s)
	}
	return p, nil
}

// Workflow is a named, immutable stage sequence.
type Workflow struct {
	Name        string      `yaml:"name" toml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" toml:"description" json:"description,omitempty"`
	Stages      []string    `yaml:"stages" toml:"stages" json:"stages"`
	FlowPattern FlowPattern `yaml:"flow_pattern" toml:"flow_pattern" json:"flow_pattern"`
	Intent      string      `yaml:"intent" toml:"intent" json:"intent"`
}

// Validate checks structural invariants. Stage IDs are not resolved here.
func (w Workflow) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrMissingName
	}
	if len(w.Stages) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyWorkflow, w.Name)
	}
	for _, id := range w.Stages {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: %s has a blank stage id", ErrEmptyWorkflow, w.Name)
		}
	}
	if !w.FlowPattern.Valid() {
		return fmt.Errorf("%w: %s uses %q", ErrInvalidFlowPattern, w.Name, w.FlowPattern)
	}
	return nil
}

// clone copies w so callers cannot mutate registered state.
func (w Workflow) clone() Workflow {
	w.Stages = append([]string(nil), w.Stages...)
	return w
}
