// Package patterns runs structured multi-stage interactions: a pair where
// the second stage sees the first, a triad where two polarities are read
// against a balancing stage, and a pillar where every stage sees all the
// stages before it.
package patterns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
)

// ErrNoStages is returned by Route when there is nothing to run.
var ErrNoStages = errors.New("pattern requires at least one stage")

// Context keys set by the patterns in addition to the standard ones.
const (
	ContextPattern    = "pattern"
	ContextPairedWith = "paired_with"
	ContextRole       = "pattern_role"
)

// Kind names a pattern.
type Kind string

const (
	KindSequential Kind = "sequential"
	KindPair       Kind = "pair"
	KindTriad      Kind = "triad"
	KindPillar     Kind = "pillar"
)

// Balance ratings.
const (
	RatingExcellent  = "excellent"
	RatingGood       = "good"
	RatingDeveloping = "developing"
)

// Balance compares the two polarities of a triad.
type Balance struct {
	Ratio  float64 `json:"ratio"`
	Rating string  `json:"rating"`
	// GrowthFocus is the weaker polarity. Empty when both are equal.
	GrowthFocus string `json:"growth_focus,omitempty"`
}

// Result is the outcome of one pattern run.
type Result struct {
	Pattern   Kind                 `json:"pattern"`
	Results   []stage.Result       `json:"results"`
	Synthesis *synthesis.Synthesis `json:"synthesis"`
	Narrative string               `json:"narrative"`
	Balance   *Balance             `json:"balance,omitempty"`
	// Progression is the percentage of pillar stages that succeeded.
	Progression float64 `json:"progression,omitempty"`
}

// Engine runs patterns through a shared Invoker.
type Engine struct {
	invoker *stage.Invoker
	synth   *synthesis.Engine
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.Named("patterns")
		}
	}
}

// New creates an Engine.
func New(invoker *stage.Invoker, synth *synthesis.Engine, opts ...Option) *Engine {
	e := &Engine{invoker: invoker, synth: synth, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Route picks a pattern from the number of stages: one runs plainly, two
// form a pair, three a triad with the middle stage as balance, and four or
// more a pillar.
func (e *Engine) Route(ctx context.Context, stages []stage.Stage, input string, base map[string]any) (*Result, error) {
	switch len(stages) {
	case 0:
		return nil, ErrNoStages
	case 1:
		res := e.sequence(ctx, KindSequential, stages, input, base)
		res.Narrative = fmt.Sprintf("%s ran on its own.", stages[0].ID())
		return res, nil
	case 2:
		return e.Pair(ctx, stages[0], stages[1], input, base), nil
	case 3:
		return e.Triad(ctx, stages[1], stages[0], stages[2], input, base), nil
	default:
		return e.Pillar(ctx, stages, input, base), nil
	}
}

// Pair runs a then b. b receives a's result.
func (e *Engine) Pair(ctx context.Context, a, b stage.Stage, input string, base map[string]any) *Result {
	first := e.invoke(ctx, a, input, base, KindPair, "first", nil, 1, 2)
	bctx := stage.Clone(base)
	bctx[ContextPairedWith] = a.ID()
	second := e.invoke(ctx, b, input, bctx, KindPair, "second", []stage.Result{first}, 2, 2)

	results := []stage.Result{first, second}
	out := &Result{
		Pattern:   KindPair,
		Results:   results,
		Synthesis: e.synth.Synthesize(results),
		Narrative: pairNarrative(first, second),
	}
	e.logDone(out)
	return out
}

// Triad runs balance first, then each polarity with the balance result.
// The second polarity also receives the first's result.
func (e *Engine) Triad(ctx context.Context, balance, polarityA, polarityB stage.Stage, input string, base map[string]any) *Result {
	mid := e.invoke(ctx, balance, input, base, KindTriad, "balance", nil, 1, 3)
	a := e.invoke(ctx, polarityA, input, base, KindTriad, "polarity", []stage.Result{mid}, 2, 3)
	b := e.invoke(ctx, polarityB, input, base, KindTriad, "polarity", []stage.Result{mid, a}, 3, 3)

	bal := PolarityBalance(a, b)
	results := []stage.Result{mid, a, b}
	out := &Result{
		Pattern:   KindTriad,
		Results:   results,
		Synthesis: e.synth.Synthesize(results),
		Balance:   &bal,
		Narrative: triadNarrative(mid, a, b, bal),
	}
	e.logDone(out)
	return out
}

// Pillar runs stages strictly in order. Each stage receives every prior
// result.
func (e *Engine) Pillar(ctx context.Context, stages []stage.Stage, input string, base map[string]any) *Result {
	out := e.sequence(ctx, KindPillar, stages, input, base)
	out.Progression = Progression(out.Results)
	ids := make([]string, 0, len(stages))
	for _, s := range stages {
		ids = append(ids, s.ID())
	}
	out.Narrative = fmt.Sprintf("The pillar %s progressed %.0f%% (%d of %d stage(s) succeeded).",
		strings.Join(ids, " → "), out.Progression, len(stage.Successes(out.Results)), len(out.Results))
	e.logDone(out)
	return out
}

func (e *Engine) sequence(ctx context.Context, kind Kind, stages []stage.Stage, input string, base map[string]any) *Result {
	results := make([]stage.Result, 0, len(stages))
	for i, s := range stages {
		results = append(results, e.invoke(ctx, s, input, base, kind, "step", results, i+1, len(stages)))
	}
	return &Result{
		Pattern:   kind,
		Results:   results,
		Synthesis: e.synth.Synthesize(results),
	}
}

func (e *Engine) invoke(ctx context.Context, s stage.Stage, input string, base map[string]any, kind Kind, role string, prior []stage.Result, pos, total int) stage.Result {
	sctx := stage.Clone(base)
	sctx[stage.ContextPreviousResults] = append([]stage.Result(nil), prior...)
	sctx[stage.ContextPosition] = pos
	sctx[stage.ContextTotalStages] = total
	sctx[ContextPattern] = string(kind)
	sctx[ContextRole] = role
	res, _ := e.invoker.Invoke(ctx, s, input, sctx)
	return *res
}

func (e *Engine) logDone(r *Result) {
	e.logger.Debug("pattern completed",
		zap.String("pattern", string(r.Pattern)),
		zap.Int("stages", len(r.Results)),
		zap.Int("successful", len(stage.Successes(r.Results))),
	)
}

// PolarityBalance compares two polarity results. The ratio is the smaller
// confidence over the larger, or 0 if either failed.
func PolarityBalance(a, b stage.Result) Balance {
	var bal Balance
	switch {
	case !a.Success && !b.Success:
		bal.Ratio = 0
	case !a.Success:
		bal.GrowthFocus = a.StageID
	case !b.Success:
		bal.GrowthFocus = b.StageID
	default:
		lo, hi := math.Min(a.Confidence, b.Confidence), math.Max(a.Confidence, b.Confidence)
		if hi > 0 {
			bal.Ratio = math.Round(lo/hi*1e6) / 1e6
		}
		if a.Confidence < b.Confidence {
			bal.GrowthFocus = a.StageID
		} else if b.Confidence < a.Confidence {
			bal.GrowthFocus = b.StageID
		}
	}
	switch {
	case bal.Ratio >= 0.9:
		bal.Rating = RatingExcellent
	case bal.Ratio >= 0.75:
		bal.Rating = RatingGood
	default:
		bal.Rating = RatingDeveloping
	}
	return bal
}

// Progression is the percentage of successful results.
func Progression(results []stage.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	pct := float64(len(stage.Successes(results))) / float64(len(results)) * 100
	return math.Round(pct*10) / 10
}

func pairNarrative(a, b stage.Result) string {
	switch {
	case a.Success && b.Success:
		return fmt.Sprintf("%s opened the way and %s built on it.", a.StageID, b.StageID)
	case a.Success:
		return fmt.Sprintf("%s contributed but %s could not build on it.", a.StageID, b.StageID)
	case b.Success:
		return fmt.Sprintf("%s carried the pair after %s faltered.", b.StageID, a.StageID)
	default:
		return fmt.Sprintf("Neither %s nor %s produced a result.", a.StageID, b.StageID)
	}
}

func triadNarrative(mid, a, b stage.Result, bal Balance) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s held the balance between %s and %s; polarity balance is %s (%.2f).",
		mid.StageID, a.StageID, b.StageID, bal.Rating, bal.Ratio)
	if bal.GrowthFocus != "" {
		fmt.Fprintf(&sb, " Growth focus: %s.", bal.GrowthFocus)
	}
	return sb.String()
}
