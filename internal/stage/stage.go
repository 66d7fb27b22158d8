// Package stage defines the contract every pluggable processing stage
// implements, a registry mapping stage IDs to implementations, and the
// single-stage invocation primitive shared by every execution mode.
//
// A stage is stateless from the runtime's point of view: it receives the
// user input plus an accumulated context map and returns a Result. Failures
// are data. The Invoker converts errors, panics and timeouts into failed
// Results so that callers can decide whether a failure is tolerable.
package stage

import (
	"context"
	"time"
)

// Reserved context keys populated by the execution engines.
const (
	ContextPreviousResults = "previous_results"
	ContextPosition        = "position"
	ContextTotalStages     = "total_stages"
)

// Stage is the contract every processing unit implements.
type Stage interface {
	// ID returns the stable identifier the stage is registered under.
	ID() string

	// Process handles input with the accumulated context. Implementations
	// should honour ctx cancellation when they block.
	Process(ctx context.Context, input string, sctx map[string]any) (*Result, error)

	// HealthCheck reports implementation-defined status details.
	HealthCheck(ctx context.Context) map[string]any
}

// Payload is the opaque output of a stage.
type Payload struct {
	Insights []string       `json:"insights"`
	Guidance []string       `json:"guidance"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is the output of one stage invocation.
//
// Confidence is meaningful only when Success is true. Error is non-empty
// iff Success is false.
type Result struct {
	StageID    string        `json:"stage_id"`
	Success    bool          `json:"success"`
	Payload    Payload       `json:"payload"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Failed builds a failed Result for stageID.
func Failed(stageID string, err error, d time.Duration) *Result {
	msg := "stage failed"
	if err != nil {
		msg = err.Error()
	}
	return &Result{
		StageID:  stageID,
		Success:  false,
		Duration: d,
		Error:    msg,
	}
}

// Successes filters results down to the successful ones, preserving order.
func Successes(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Success {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep-enough copy of the context map for handing to a stage.
// Nested values are shared.
func Clone(sctx map[string]any) map[string]any {
	out := make(map[string]any, len(sctx)+3)
	for k, v := range sctx {
		out[k] = v
	}
	return out
}

// ProcessFunc is the signature of Stage.Process.
type ProcessFunc func(ctx context.Context, input string, sctx map[string]any) (*Result, error)

// Func adapts a plain function into a Stage.
type Func struct {
	StageID string
	Fn      ProcessFunc
}

func (f *Func) ID() string { return f.StageID }

func (f *Func) Process(ctx context.Context, input string, sctx map[string]any) (*Result, error) {
	return f.Fn(ctx, input, sctx)
}

func (f *Func) HealthCheck(context.Context) map[string]any {
	return map[string]any{"status": "healthy", "type": "func"}
}
