package orchestrator

import (
	"time"

	"github.com/fyrsmithlabs/stagehand/internal/patterns"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// StageStatus is the progress state of one stage in a run.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
	StatusSkipped    StageStatus = "skipped"
)

// StageProgress reports progress during execution.
type StageProgress struct {
	SessionID  string      `json:"session_id,omitempty"`
	StageID    string      `json:"stage_id"`
	Status     StageStatus `json:"status"`
	Position   int         `json:"position"`
	Total      int         `json:"total"`
	Message    string      `json:"message"`
	Percentage int         `json:"percentage"`
}

// ProgressCallback receives progress updates during execution.
type ProgressCallback func(progress StageProgress)

// CreateSessionRequest describes a new session.
type CreateSessionRequest struct {
	OwnerID        string               `json:"owner_id" validate:"required,max=128"`
	Intent         string               `json:"intent" validate:"max=1000"`
	WorkflowName   string               `json:"workflow_name,omitempty" validate:"max=128"`
	ExplicitStages []string             `json:"explicit_stages,omitempty" validate:"max=32,dive,required"`
	FlowPattern    workflow.FlowPattern `json:"flow_pattern,omitempty"`
}

// CreateSessionResponse describes the created session.
type CreateSessionResponse struct {
	SessionID      string               `json:"session_id"`
	ResolvedStages []string             `json:"resolved_stages"`
	FlowPattern    workflow.FlowPattern `json:"flow_pattern"`
	WorkflowName   string               `json:"workflow_name,omitempty"`
	Intent         string               `json:"intent,omitempty"`
}

// ProcessingSummary condenses one processing pass.
type ProcessingSummary struct {
	StagesRun  int           `json:"stages_run"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Confidence float64       `json:"confidence"`
	Quality    string        `json:"quality"`
	Duration   time.Duration `json:"duration"`
}

// ProcessResponse is the outcome of Service.Process.
type ProcessResponse struct {
	SessionID   string               `json:"session_id"`
	Success     bool                 `json:"success"`
	FlowPattern workflow.FlowPattern `json:"flow_pattern"`
	// Pattern is set for balancing sessions.
	Pattern     patterns.Kind        `json:"pattern,omitempty"`
	Results     []stage.Result       `json:"results"`
	Synthesis   *synthesis.Synthesis `json:"synthesis"`
	Balance     *patterns.Balance    `json:"balance,omitempty"`
	Progression float64              `json:"progression,omitempty"`
	Narrative   string               `json:"narrative,omitempty"`
	Summary     ProcessingSummary    `json:"summary"`
	Violations  []Violation          `json:"violations,omitempty"`
}

// HealthStatus reports service health.
type HealthStatus struct {
	Status           string                    `json:"status"`
	ActiveSessions   int                       `json:"active_sessions"`
	RegisteredStages int                       `json:"registered_stages"`
	Workflows        int                       `json:"workflows"`
	Stages           map[string]map[string]any `json:"stages"`
}

// Health status values.
const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

func summarize(results []stage.Result, syn *synthesis.Synthesis, d time.Duration) ProcessingSummary {
	ok := len(stage.Successes(results))
	return ProcessingSummary{
		StagesRun:  len(results),
		Successful: ok,
		Failed:     len(results) - ok,
		Confidence: syn.Confidence,
		Quality:    string(syn.Quality),
		Duration:   d,
	}
}
