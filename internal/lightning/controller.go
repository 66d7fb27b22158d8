// Package lightning runs accelerated, paced traversals of a fixed stage
// pathway under a hard time budget.
//
// A run moves created → running → completed or emergency_grounded. Any
// unrecoverable invocation failure or cancellation grounds the run: the
// loop stops and the partial result is returned normally, never as an
// error. All pacing goes through a Clock so runs are testable without
// sleeping.
package lightning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
)

// Defaults used when options are not supplied.
const (
	DefaultMaxDuration           = 45 * time.Minute
	DefaultBreakthroughThreshold = 0.85
	DefaultRetention             = 24 * time.Hour
)

// Context keys added to every lightning step.
const (
	ContextEnergy    = "lightning_energy"
	ContextPathway   = "lightning_pathway"
	ContextIntensity = "lightning_intensity"
)

// Status is the state of a run.
type Status string

const (
	StatusCreated           Status = "created"
	StatusRunning           Status = "running"
	StatusCompleted         Status = "completed"
	StatusEmergencyGrounded Status = "emergency_grounded"
)

// TransformationLevel grades a finished run.
type TransformationLevel string

const (
	LevelProfound    TransformationLevel = "profound"
	LevelSignificant TransformationLevel = "significant"
	LevelModerate    TransformationLevel = "moderate"
	LevelInitial     TransformationLevel = "initial"
)

// Level grades a run from the mean confidence of its successful steps and
// its completion ratio.
func Level(meanConfidence, completion float64) TransformationLevel {
	switch {
	case meanConfidence >= 0.85 && completion >= 1:
		return LevelProfound
	case meanConfidence >= 0.7 && completion >= 0.8:
		return LevelSignificant
	case meanConfidence >= 0.5 && completion >= 0.5:
		return LevelModerate
	default:
		return LevelInitial
	}
}

// Request starts a run.
type Request struct {
	OwnerID          string         `json:"owner_id"`
	Pathway          string         `json:"pathway"`
	Intensity        Intensity      `json:"intensity"`
	Input            string         `json:"input"`
	Context          map[string]any `json:"context,omitempty"`
	ConsentConfirmed bool           `json:"consent_confirmed"`
}

// BreakthroughEvent marks a step whose confidence reached the threshold.
type BreakthroughEvent struct {
	Step       int     `json:"step"`
	StageID    string  `json:"stage_id"`
	Confidence float64 `json:"confidence"`
}

// Run is the record of one lightning traversal.
type Run struct {
	ID                        string               `json:"id"`
	OwnerID                   string               `json:"owner_id"`
	Pathway                   string               `json:"pathway"`
	Intensity                 Intensity            `json:"intensity"`
	Status                    Status               `json:"status"`
	StartedAt                 time.Time            `json:"started_at"`
	EndedAt                   time.Time            `json:"ended_at"`
	Elapsed                   time.Duration        `json:"elapsed"`
	Budget                    time.Duration        `json:"budget"`
	TotalSteps                int                  `json:"total_steps"`
	StagesCompleted           int                  `json:"stages_completed"`
	CompletionRatio           float64              `json:"completion_ratio"`
	Results                   []stage.Result       `json:"results"`
	Skipped                   []string             `json:"skipped,omitempty"`
	Breakthroughs             []BreakthroughEvent  `json:"breakthroughs"`
	EmergencyGroundingApplied bool                 `json:"emergency_grounding_applied"`
	GroundingReason           string               `json:"grounding_reason,omitempty"`
	Synthesis                 *synthesis.Synthesis `json:"synthesis,omitempty"`
	Narrative                 string               `json:"narrative"`
	TransformationLevel       TransformationLevel  `json:"transformation_level"`
}

// Summary condenses a run for responses.
type Summary struct {
	StagesCompleted           int                 `json:"stages_completed"`
	TotalSteps                int                 `json:"total_steps"`
	CompletionRatio           float64             `json:"completion_ratio"`
	Breakthroughs             int                 `json:"breakthroughs"`
	Elapsed                   time.Duration       `json:"elapsed"`
	EmergencyGroundingApplied bool                `json:"emergency_grounding_applied"`
	TransformationLevel       TransformationLevel `json:"transformation_level"`
}

// Response is returned by Initiate. Missing consent is a negative response,
// not an error.
type Response struct {
	Success         bool         `json:"success"`
	ConsentRequired bool         `json:"consent_required,omitempty"`
	Message         string       `json:"message,omitempty"`
	PathwayInfo     *PathwayInfo `json:"pathway_info,omitempty"`
	RunID           string       `json:"run_id,omitempty"`
	Run             *Run         `json:"run,omitempty"`
	Summary         *Summary     `json:"summary,omitempty"`
}

// Controller executes lightning runs.
type Controller struct {
	stages      *stage.Registry
	invoker     *stage.Invoker
	synth       *synthesis.Engine
	clock       Clock
	maxDuration time.Duration
	threshold   float64
	runs        *cache.Cache
	logger      *Logger
	metrics     *Metrics
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithMaxDuration sets the run time budget.
func WithMaxDuration(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.maxDuration = d
		}
	}
}

// WithBreakthroughThreshold sets the confidence marking a breakthrough.
func WithBreakthroughThreshold(t float64) Option {
	return func(ctl *Controller) {
		if t > 0 && t <= 1 {
			ctl.threshold = t
		}
	}
}

// WithLogger sets the zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(ctl *Controller) { ctl.logger = NewLogger(l) }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// NewController creates a Controller.
func NewController(stages *stage.Registry, invoker *stage.Invoker, synth *synthesis.Engine, opts ...Option) *Controller {
	c := &Controller{
		stages:      stages,
		invoker:     invoker,
		synth:       synth,
		clock:       RealClock{},
		maxDuration: DefaultMaxDuration,
		threshold:   DefaultBreakthroughThreshold,
		runs:        cache.New(DefaultRetention, time.Hour),
		logger:      NewLogger(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxDuration returns the run time budget.
func (c *Controller) MaxDuration() time.Duration {
	return c.maxDuration
}

// Get returns a finished run by ID.
func (c *Controller) Get(id string) (*Run, error) {
	v, ok := c.runs.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return v.(*Run), nil
}

// Initiate validates req and, given consent, executes the run to a
// terminal state. Errors are returned only for invalid requests.
func (c *Controller) Initiate(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return nil, ErrMissingOwner
	}
	ctx = logging.WithOwnerID(ctx, req.OwnerID)
	pathway, err := LookupPathway(req.Pathway)
	if err != nil {
		return nil, err
	}
	intensity := req.Intensity
	if intensity == "" {
		intensity = Moderate
	}
	profile, err := ProfileFor(intensity)
	if err != nil {
		return nil, err
	}
	info := pathway.info()
	if !req.ConsentConfirmed {
		if c.metrics != nil {
			c.metrics.ConsentRequired.Inc()
		}
		return &Response{
			Success:         false,
			ConsentRequired: true,
			Message:         fmt.Sprintf("The %s pathway runs %d stages in quick succession at %s intensity. Confirm consent to begin.", pathway.Name, len(pathway.Stages), profile.Intensity),
			PathwayInfo:     &info,
		}, nil
	}

	run := &Run{
		ID:         uuid.NewString(),
		OwnerID:    req.OwnerID,
		Pathway:    pathway.Name,
		Intensity:  profile.Intensity,
		Status:     StatusCreated,
		Budget:     c.maxDuration,
		TotalSteps: len(pathway.Stages),
	}
	c.execute(ctx, run, pathway, profile, req)
	c.runs.SetDefault(run.ID, run)

	return &Response{
		Success:     true,
		Message:     run.Narrative,
		PathwayInfo: &info,
		RunID:       run.ID,
		Run:         run,
		Summary:     run.summary(),
	}, nil
}

func (c *Controller) execute(ctx context.Context, run *Run, pathway Pathway, profile Profile, req Request) {
	run.StartedAt = c.clock.Now()
	run.Status = StatusRunning
	deadline := run.StartedAt.Add(c.maxDuration)
	delays := profile.Delays(len(pathway.Stages))
	c.logger.RunStarted(ctx, run)

	ground := func(reason string) {
		run.Status = StatusEmergencyGrounded
		run.EmergencyGroundingApplied = true
		run.GroundingReason = reason
		c.logger.Grounded(ctx, run.ID, reason, run.StagesCompleted)
	}
	remaining := func() time.Duration { return deadline.Sub(c.clock.Now()) }

	const budgetExceeded = "time budget exceeded"

	for i, id := range pathway.Stages {
		if err := ctx.Err(); err != nil {
			ground(fmt.Sprintf("canceled: %v", err))
			break
		}
		if remaining() <= 0 {
			ground(budgetExceeded)
			break
		}

		if profile.PausesBefore(i) && profile.PauseDuration > 0 {
			if err := c.clock.Sleep(ctx, min(profile.PauseDuration, remaining())); err != nil {
				ground(fmt.Sprintf("canceled: %v", err))
				break
			}
			if remaining() <= 0 {
				ground(budgetExceeded)
				break
			}
		}

		st, err := c.stages.Get(id)
		if err != nil {
			c.logger.StageSkipped(ctx, run.ID, id)
			run.Skipped = append(run.Skipped, id)
			continue
		}

		sctx := stage.Clone(req.Context)
		sctx[stage.ContextPreviousResults] = append([]stage.Result(nil), run.Results...)
		sctx[stage.ContextPosition] = i + 1
		sctx[stage.ContextTotalStages] = len(pathway.Stages)
		sctx[ContextEnergy] = pathway.Energy(i)
		sctx[ContextPathway] = pathway.Name
		sctx[ContextIntensity] = string(profile.Intensity)

		stepCtx, cancel := context.WithTimeout(ctx, remaining())
		res, err := c.invoker.Invoke(stepCtx, st, req.Input, sctx)
		cancel()
		run.Results = append(run.Results, *res)
		if err != nil {
			c.recordStep(pathway.Name, "error")
			ground(fmt.Sprintf("stage %s failed: %v", id, err))
			break
		}
		run.StagesCompleted++
		if !res.Success {
			c.recordStep(pathway.Name, "soft_failure")
		} else {
			c.recordStep(pathway.Name, "success")
		}

		if res.Success && res.Confidence >= c.threshold {
			run.Breakthroughs = append(run.Breakthroughs, BreakthroughEvent{Step: i, StageID: id, Confidence: res.Confidence})
			c.logger.Breakthrough(ctx, run.ID, id, res.Confidence)
			if c.metrics != nil {
				c.metrics.BreakthroughsTotal.WithLabelValues(pathway.Name).Inc()
			}
		}

		if i == len(pathway.Stages)-1 {
			break
		}
		if d := min(delays[i], remaining()); d > 0 {
			if err := c.clock.Sleep(ctx, d); err != nil {
				ground(fmt.Sprintf("canceled: %v", err))
				break
			}
		}
	}

	if !run.EmergencyGroundingApplied && c.clock.Now().After(deadline) {
		ground(budgetExceeded)
	}
	c.finish(ctx, run)
}

func (c *Controller) finish(ctx context.Context, run *Run) {
	if run.Status == StatusRunning {
		run.Status = StatusCompleted
	}
	run.EndedAt = c.clock.Now()
	// A step finishing at the deadline is observed a moment after it.
	if deadline := run.StartedAt.Add(run.Budget); run.Budget > 0 && run.EndedAt.After(deadline) {
		run.EndedAt = deadline
	}
	run.Elapsed = run.EndedAt.Sub(run.StartedAt)
	if run.TotalSteps > 0 {
		run.CompletionRatio = float64(run.StagesCompleted) / float64(run.TotalSteps)
	}

	completed := run.Results
	if run.EmergencyGroundingApplied && len(completed) > run.StagesCompleted {
		// The last result is the step that grounded the run.
		completed = completed[:len(completed)-1]
	}
	run.Synthesis = c.synth.Synthesize(completed)
	run.TransformationLevel = Level(run.Synthesis.Confidence, run.CompletionRatio)
	run.Narrative = narrative(run)

	if c.metrics != nil {
		c.metrics.RunsTotal.WithLabelValues(run.Pathway, string(run.Intensity), string(run.Status)).Inc()
		c.metrics.RunDuration.WithLabelValues(run.Pathway).Observe(run.Elapsed.Seconds())
		c.metrics.CompletionRatio.Observe(run.CompletionRatio)
	}
	c.logger.RunFinished(ctx, run)
}

func (c *Controller) recordStep(pathway, outcome string) {
	if c.metrics != nil {
		c.metrics.StepsTotal.WithLabelValues(pathway, outcome).Inc()
	}
}

func (r *Run) summary() *Summary {
	return &Summary{
		StagesCompleted:           r.StagesCompleted,
		TotalSteps:                r.TotalSteps,
		CompletionRatio:           r.CompletionRatio,
		Breakthroughs:             len(r.Breakthroughs),
		Elapsed:                   r.Elapsed,
		EmergencyGroundingApplied: r.EmergencyGroundingApplied,
		TransformationLevel:       r.TransformationLevel,
	}
}

func narrative(r *Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s pathway at %s intensity moved through %d of %d stage(s)",
		r.Pathway, r.Intensity, r.StagesCompleted, r.TotalSteps)
	switch len(r.Breakthroughs) {
	case 0:
		b.WriteString(".")
	case 1:
		fmt.Fprintf(&b, " with a breakthrough at %s.", r.Breakthroughs[0].StageID)
	default:
		fmt.Fprintf(&b, " with %d breakthroughs.", len(r.Breakthroughs))
	}
	if r.EmergencyGroundingApplied {
		fmt.Fprintf(&b, " Emergency grounding was applied (%s).", r.GroundingReason)
	}
	fmt.Fprintf(&b, " Transformation level: %s.", r.TransformationLevel)
	return b.String()
}
