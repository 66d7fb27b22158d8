// Package session manages orchestration sessions: creation from a workflow
// or an explicit stage list, an append-only event history, the latest
// synthesis, and completion.
//
// Sessions live in an injected Store (an idle-expiring in-memory cache by
// default). Each session carries its own lock; Manager.WithSession
// serializes all work on one session while different sessions proceed in
// parallel. New history events are published through a Publisher after
// each mutation.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// EventType names a history event.
type EventType string

const (
	EventSessionCreated     EventType = "session_created"
	EventStageUnresolved    EventType = "stage_unresolved"
	EventSynthesisCompleted EventType = "synthesis_completed"
	EventPatternCompleted   EventType = "pattern_completed"
	EventAdapterProcessed   EventType = "adapter_processed"
	EventSessionCompleted   EventType = "session_completed"
)

// Event is one entry in a session's history.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// FinalSummary is produced once, when a session completes.
type FinalSummary struct {
	SessionID       string               `json:"session_id"`
	OwnerID         string               `json:"owner_id"`
	Intent          string               `json:"intent"`
	WorkflowName    string               `json:"workflow_name,omitempty"`
	Stages          []string             `json:"stages"`
	ProcessingCount int                  `json:"processing_count"`
	EventCount      int                  `json:"event_count"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     time.Time            `json:"completed_at"`
	Duration        time.Duration        `json:"duration"`
	FinalSynthesis  *synthesis.Synthesis `json:"final_synthesis,omitempty"`
}

// Session is a unit of multi-turn orchestration.
//
// Values returned by Manager.Get are snapshots. The live value is only
// handed out inside Manager.WithSession, where it may be mutated through
// Record and SetSynthesis.
type Session struct {
	ID              string               `json:"id"`
	OwnerID         string               `json:"owner_id"`
	Intent          string               `json:"intent"`
	WorkflowName    string               `json:"workflow_name,omitempty"`
	Stages          []string             `json:"stages"`
	FlowPattern     workflow.FlowPattern `json:"flow_pattern"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	History         []Event              `json:"history"`
	LatestSynthesis *synthesis.Synthesis `json:"latest_synthesis,omitempty"`
	Completed       bool                 `json:"completed"`
	Summary         *FinalSummary        `json:"summary,omitempty"`

	lock *sync.Mutex
	done *atomic.Bool
	// view is the snapshot published after the last mutation. Readers use
	// it instead of waiting on lock, which is held while stages run.
	view *atomic.Pointer[Session]
	now  func() time.Time
}

// Record appends an event to the history.
func (s *Session) Record(t EventType, payload map[string]any) {
	ts := s.clock()
	s.History = append(s.History, Event{Type: t, Timestamp: ts, Payload: payload})
	s.UpdatedAt = ts
}

// SetSynthesis replaces the latest synthesis.
func (s *Session) SetSynthesis(syn *synthesis.Synthesis) {
	s.LatestSynthesis = syn
}

// EnsureOpen returns ErrSessionClosed once the session has completed.
func (s *Session) EnsureOpen() error {
	if s.Completed {
		return ErrSessionClosed
	}
	return nil
}

// ProcessingCount counts synthesis-producing events.
func (s *Session) ProcessingCount() int {
	n := 0
	for _, ev := range s.History {
		switch ev.Type {
		case EventSynthesisCompleted, EventPatternCompleted, EventAdapterProcessed:
			n++
		}
	}
	return n
}

func (s *Session) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// snapshot copies the session without its lock. Syntheses and event
// payloads are treated as immutable and shared.
func (s *Session) snapshot() *Session {
	cp := *s
	cp.Stages = append([]string(nil), s.Stages...)
	cp.History = append([]Event(nil), s.History...)
	cp.lock = nil
	cp.done = nil
	cp.view = nil
	cp.now = nil
	return &cp
}

// publish stores a snapshot for lock-free readers. Callers hold lock.
func (s *Session) publish() {
	s.view.Store(s.snapshot())
}

// CreateRequest describes a new session.
type CreateRequest struct {
	OwnerID string
	Intent  string
	// WorkflowName selects a catalogue workflow.
	WorkflowName string
	// ExplicitStages takes precedence over WorkflowName when both are set.
	ExplicitStages []string
	// FlowPattern applies to explicit or default stage sets only.
	FlowPattern workflow.FlowPattern
}
