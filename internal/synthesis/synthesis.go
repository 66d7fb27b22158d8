// Package synthesis reduces a list of stage results into one Synthesis.
//
// The engine is pure and deterministic: identical input in identical order
// yields identical output. Only successful results contribute. Insights and
// guidance are deduplicated with a pluggable Similarity (first seen wins),
// guidance is ordered actionable-first, and the aggregate confidence is the
// mean of the successful stages.
package synthesis

import (
	"fmt"
	"math"
	"strings"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

// ErrNoSuccessfulProcessing is the text placed in Synthesis.Error when no
// stage succeeded.
const ErrNoSuccessfulProcessing = "no successful processing"

// Quality is an ordinal label for a synthesis.
type Quality string

const (
	QualityExcellent        Quality = "excellent"
	QualityGood             Quality = "good"
	QualityAdequate         Quality = "adequate"
	QualityNeedsImprovement Quality = "needs_improvement"
)

// Rank orders qualities; higher is better.
func (q Quality) Rank() int {
	switch q {
	case QualityExcellent:
		return 3
	case QualityGood:
		return 2
	case QualityAdequate:
		return 1
	default:
		return 0
	}
}

// Grade maps the count of successful stages and their mean confidence to
// a Quality.
func Grade(successes int, mean float64) Quality {
	switch {
	case successes >= 3 && mean >= 0.8:
		return QualityExcellent
	case successes >= 2 && mean >= 0.7:
		return QualityGood
	case successes >= 1 && mean >= 0.5:
		return QualityAdequate
	default:
		return QualityNeedsImprovement
	}
}

// Synergy notes how one stage's contribution relates to the stage before it.
type Synergy struct {
	StageID string `json:"stage_id"`
	With    string `json:"with,omitempty"`
	Note    string `json:"note"`
}

// Synthesis is the aggregate of one execution pass.
type Synthesis struct {
	Narrative        string    `json:"narrative"`
	Insights         []string  `json:"insights"`
	Guidance         []string  `json:"guidance"`
	Themes           []string  `json:"themes"`
	Synergies        []Synergy `json:"synergies"`
	Confidence       float64   `json:"confidence"`
	Quality          Quality   `json:"quality"`
	Roadmap          Roadmap   `json:"roadmap"`
	NextSteps        []string  `json:"next_steps"`
	SuccessfulStages int       `json:"successful_stages"`
	TotalStages      int       `json:"total_stages"`
	Error            string    `json:"error,omitempty"`
}

// Failed reports whether no stage contributed.
func (s *Synthesis) Failed() bool {
	return s == nil || s.Error != ""
}

// Option configures an Engine.
type Option func(*Engine)

// WithSimilarity replaces the default TokenOverlap similarity.
func WithSimilarity(sim Similarity) Option {
	return func(e *Engine) {
		if sim != nil {
			e.similarity = sim
		}
	}
}

// WithThreshold sets the duplicate threshold shared by insights and guidance.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.threshold = t
		}
	}
}

// WithCaps sets the insight, actionable and reflective guidance caps.
func WithCaps(insights, actionable, reflective int) Option {
	return func(e *Engine) {
		if insights > 0 {
			e.maxInsights = insights
		}
		if actionable >= 0 {
			e.maxActionable = actionable
		}
		if reflective >= 0 {
			e.maxReflective = reflective
		}
	}
}

// Defaults.
const (
	DefaultThreshold     = 0.45
	DefaultMaxInsights   = 6
	DefaultMaxActionable = 4
	DefaultMaxReflective = 3
	maxNextSteps         = 3
)

// Engine performs synthesis. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	similarity    Similarity
	threshold     float64
	maxInsights   int
	maxActionable int
	maxReflective int
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		similarity:    TokenOverlap{},
		threshold:     DefaultThreshold,
		maxInsights:   DefaultMaxInsights,
		maxActionable: DefaultMaxActionable,
		maxReflective: DefaultMaxReflective,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// duplicate reports whether candidate is a near-duplicate of any kept item.
func (e *Engine) duplicate(kept []string, candidate string) bool {
	norm := normalizeText(candidate)
	for _, k := range kept {
		if normalizeText(k) == norm {
			return true
		}
		if e.similarity.Score(k, candidate) > e.threshold {
			return true
		}
	}
	return false
}

// dedupe keeps first-seen items that are not near-duplicates of earlier ones.
func (e *Engine) dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it) == "" {
			continue
		}
		if e.duplicate(out, it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Unify deduplicates insights and applies the insight cap. Unify is
// idempotent.
func (e *Engine) Unify(insights []string) []string {
	out := e.dedupe(insights)
	if len(out) > e.maxInsights {
		out = out[:e.maxInsights]
	}
	return out
}

// PrioritizeGuidance deduplicates guidance and returns up to the actionable
// cap of actionable items followed by up to the reflective cap of the rest.
func (e *Engine) PrioritizeGuidance(guidance []string) []string {
	var actionable, reflective []string
	for _, g := range e.dedupe(guidance) {
		if IsActionable(g) {
			if len(actionable) < e.maxActionable {
				actionable = append(actionable, g)
			}
			continue
		}
		if len(reflective) < e.maxReflective {
			reflective = append(reflective, g)
		}
	}
	out := make([]string, 0, len(actionable)+len(reflective))
	out = append(out, actionable...)
	return append(out, reflective...)
}

// Synthesize reduces results into a Synthesis. Failed results are counted
// in TotalStages but contribute nothing else.
func (e *Engine) Synthesize(results []stage.Result) *Synthesis {
	successes := stage.Successes(results)
	syn := &Synthesis{
		TotalStages:      len(results),
		SuccessfulStages: len(successes),
	}

	var insights, guidance []string
	var total float64
	for _, r := range successes {
		insights = append(insights, r.Payload.Insights...)
		guidance = append(guidance, r.Payload.Guidance...)
		total += r.Confidence
	}
	if len(successes) > 0 {
		syn.Confidence = round(total / float64(len(successes)))
	}

	syn.Insights = e.Unify(insights)
	syn.Guidance = e.PrioritizeGuidance(guidance)
	syn.Themes = Themes(syn.Guidance)
	syn.Roadmap = BuildRoadmap(syn.Guidance)
	syn.Synergies = synergies(successes)
	syn.Quality = Grade(syn.SuccessfulStages, syn.Confidence)
	syn.NextSteps = nextSteps(syn.Guidance)
	if len(successes) == 0 {
		syn.Error = ErrNoSuccessfulProcessing
	}
	syn.Narrative = narrative(syn, successes)
	return syn
}

// round trims float noise so threshold comparisons are stable.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func synergies(successes []stage.Result) []Synergy {
	out := make([]Synergy, 0, len(successes))
	for i, r := range successes {
		s := Synergy{
			StageID: r.StageID,
			Note: fmt.Sprintf("%s contributed %d insight(s) at %.0f%% confidence",
				r.StageID, len(r.Payload.Insights), r.Confidence*100),
		}
		if i > 0 {
			s.With = successes[i-1].StageID
			s.Note += fmt.Sprintf(", extending %s", s.With)
		}
		out = append(out, s)
	}
	return out
}

func nextSteps(guidance []string) []string {
	if len(guidance) == 0 {
		return []string{"Share more detail so the stages have something to work with"}
	}
	n := len(guidance)
	if n > maxNextSteps {
		n = maxNextSteps
	}
	return append([]string(nil), guidance[:n]...)
}

func narrative(syn *Synthesis, successes []stage.Result) string {
	if len(successes) == 0 {
		return fmt.Sprintf("None of the %d stage(s) produced a usable result.", syn.TotalStages)
	}
	ids := make([]string, 0, len(successes))
	for _, r := range successes {
		ids = append(ids, r.StageID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesized %d of %d stage(s) (%s) with %s quality at %.0f%% confidence.",
		syn.SuccessfulStages, syn.TotalStages, strings.Join(ids, ", "), syn.Quality, syn.Confidence*100)
	if len(syn.Themes) > 0 {
		fmt.Fprintf(&b, " Themes: %s.", strings.Join(syn.Themes, ", "))
	}
	return b.String()
}
