package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

// DefaultMaxInputLength bounds input size in runes.
const DefaultMaxInputLength = 20000

// ViolationType categorizes input violations.
type ViolationType string

const (
	ViolationEmptyInput    ViolationType = "empty_input"
	ViolationInputTooLong  ViolationType = "input_too_long"
	ViolationInvalidUTF8   ViolationType = "invalid_utf8"
	ViolationReservedKey   ViolationType = "reserved_context_key"
	ViolationContextTooBig ViolationType = "context_too_big"
	ViolationSecret        ViolationType = "secret_redacted"
)

// Severity indicates how serious a violation is.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Violation is a problem a gate found with a request.
type Violation struct {
	Type        ViolationType `json:"type"`
	Gate        string        `json:"gate"`
	Description string        `json:"description"`
	Severity    Severity      `json:"severity"`
	DetectedAt  time.Time     `json:"detected_at"`
}

// GateInput is what a gate inspects.
type GateInput struct {
	SessionID string
	Input     string
	Context   map[string]any
}

// Gate validates a request before processing.
type Gate interface {
	Name() string
	Check(ctx context.Context, in GateInput) ([]Violation, error)
}

// DefaultGates returns the gates a Service uses unless overridden.
func DefaultGates() []Gate {
	return []Gate{
		NewInputGate(DefaultMaxInputLength),
		NewContextGate(64),
	}
}

// InputGate checks the input text.
type InputGate struct {
	maxLength int
}

// NewInputGate creates an InputGate. maxLength <= 0 disables the length check.
func NewInputGate(maxLength int) *InputGate {
	return &InputGate{maxLength: maxLength}
}

func (g *InputGate) Name() string {
	return "input"
}

// Check flags invalid UTF-8 and oversize input as errors. Blank input is
// a warning: stages report it as a soft failure.
func (g *InputGate) Check(ctx context.Context, in GateInput) ([]Violation, error) {
	var violations []Violation

	if !utf8.ValidString(in.Input) {
		violations = append(violations, Violation{
			Type:        ViolationInvalidUTF8,
			Gate:        g.Name(),
			Description: "input is not valid UTF-8",
			Severity:    SeverityError,
			DetectedAt:  time.Now(),
		})
		return violations, nil
	}

	if strings.TrimSpace(in.Input) == "" {
		violations = append(violations, Violation{
			Type:        ViolationEmptyInput,
			Gate:        g.Name(),
			Description: "input is empty; stages will have nothing to work with",
			Severity:    SeverityWarning,
			DetectedAt:  time.Now(),
		})
	}

	if g.maxLength > 0 {
		if n := utf8.RuneCountInString(in.Input); n > g.maxLength {
			violations = append(violations, Violation{
				Type:        ViolationInputTooLong,
				Gate:        g.Name(),
				Description: fmt.Sprintf("input has %d characters, limit is %d", n, g.maxLength),
				Severity:    SeverityError,
				DetectedAt:  time.Now(),
			})
		}
	}
	return violations, nil
}

// ContextGate checks the caller-supplied context map.
type ContextGate struct {
	maxKeys int
}

// NewContextGate creates a ContextGate. maxKeys <= 0 disables the size check.
func NewContextGate(maxKeys int) *ContextGate {
	return &ContextGate{maxKeys: maxKeys}
}

func (g *ContextGate) Name() string {
	return "context"
}

// Check warns about reserved keys, which the engine overwrites, and
// rejects oversized maps.
func (g *ContextGate) Check(ctx context.Context, in GateInput) ([]Violation, error) {
	var violations []Violation

	var reserved []string
	for _, key := range []string{stage.ContextPreviousResults, stage.ContextPosition, stage.ContextTotalStages} {
		if _, ok := in.Context[key]; ok {
			reserved = append(reserved, key)
		}
	}
	if len(reserved) > 0 {
		sort.Strings(reserved)
		violations = append(violations, Violation{
			Type:        ViolationReservedKey,
			Gate:        g.Name(),
			Description: fmt.Sprintf("reserved context keys will be overwritten: %s", strings.Join(reserved, ", ")),
			Severity:    SeverityWarning,
			DetectedAt:  time.Now(),
		})
	}

	if g.maxKeys > 0 && len(in.Context) > g.maxKeys {
		violations = append(violations, Violation{
			Type:        ViolationContextTooBig,
			Gate:        g.Name(),
			Description: fmt.Sprintf("context has %d keys, limit is %d", len(in.Context), g.maxKeys),
			Severity:    SeverityError,
			DetectedAt:  time.Now(),
		})
	}
	return violations, nil
}

// checkGates runs every gate and collects violations.
func checkGates(ctx context.Context, gates []Gate, in GateInput) ([]Violation, error) {
	var all []Violation
	for _, gate := range gates {
		violations, err := gate.Check(ctx, in)
		if err != nil {
			return all, fmt.Errorf("gate %s: %w", gate.Name(), err)
		}
		all = append(all, violations...)
	}
	return all, nil
}

func hasBlockingViolation(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityError || v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func describeViolations(violations []Violation) string {
	descs := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Severity == SeverityWarning {
			continue
		}
		descs = append(descs, v.Description)
	}
	return strings.Join(descs, "; ")
}
