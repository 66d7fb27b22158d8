package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/secrets"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

func TestService_RedactsSecretsBeforeStages(t *testing.T) {
	m := NewMockStage(stage.Keter)
	m.On("Process", mock.Anything, "deploy with [REDACTED] today", mock.Anything).
		Return(okResult(), nil).Once()

	h := newHarness(t, registryOf(m), nil)
	ctx := context.Background()

	created, err := h.svc.CreateSession(ctx, CreateSessionRequest{OwnerID: "u1", ExplicitStages: []string{stage.Keter}})
	require.NoError(t, err)

	resp, err := h.svc.Process(ctx, created.SessionID, "deploy with password = correcthorsebattery today", nil)
	require.NoError(t, err)
	m.AssertExpectations(t)

	require.Len(t, resp.Violations, 1)
	v := resp.Violations[0]
	assert.Equal(t, ViolationSecret, v.Type)
	assert.Equal(t, SeverityWarning, v.Severity)
	assert.Contains(t, v.Description, "assigned-secret")
	assert.NotContains(t, v.Description, "correcthorsebattery")
}

func TestService_RedactionDisabled(t *testing.T) {
	raw := "password = correcthorsebattery"
	m := NewMockStage(stage.Keter)
	m.On("Process", mock.Anything, raw, mock.Anything).
		Return(okResult(), nil).Once()

	h := newHarness(t, registryOf(m), nil, WithScrubber(nil))
	ctx := context.Background()

	created, err := h.svc.CreateSession(ctx, CreateSessionRequest{OwnerID: "u1", ExplicitStages: []string{stage.Keter}})
	require.NoError(t, err)

	resp, err := h.svc.Process(ctx, created.SessionID, raw, nil)
	require.NoError(t, err)
	m.AssertExpectations(t)
	assert.Empty(t, resp.Violations)
}

func TestService_CustomScrubber(t *testing.T) {
	sc, err := secrets.New(secrets.Rule{ID: "codename", Pattern: `BLUEBIRD-\d+`})
	require.NoError(t, err)
	m := NewMockStage(stage.Keter)
	m.On("Process", mock.Anything, "ship [REDACTED] now", mock.Anything).
		Return(okResult(), nil).Once()

	h := newHarness(t, registryOf(m), nil, WithScrubber(sc))
	ctx := context.Background()

	created, err := h.svc.CreateSession(ctx, CreateSessionRequest{OwnerID: "u1", ExplicitStages: []string{stage.Keter}})
	require.NoError(t, err)

	resp, err := h.svc.Process(ctx, created.SessionID, "ship BLUEBIRD-42 now", nil)
	require.NoError(t, err)
	m.AssertExpectations(t)
	require.Len(t, resp.Violations, 1)
	assert.Contains(t, resp.Violations[0].Description, "codename")
}

func okResult() *stage.Result {
	return &stage.Result{
		StageID:    stage.Keter,
		Success:    true,
		Confidence: 0.8,
		Payload:    stage.Payload{Insights: []string{"a clear crown perspective"}},
	}
}

func TestService_ProcessCarriesCorrelationIDs(t *testing.T) {
	tl := logging.NewTestLogger()
	m := NewMockStage(stage.Keter)
	h := newHarness(t, registryOf(m), tl.Underlying())
	ctx := context.Background()

	created, err := h.svc.CreateSession(ctx, CreateSessionRequest{OwnerID: "u1", ExplicitStages: []string{stage.Keter}})
	require.NoError(t, err)

	m.On("Process", mock.MatchedBy(func(ctx context.Context) bool {
		return logging.SessionIDFromContext(ctx) == created.SessionID &&
			logging.StageIDFromContext(ctx) == stage.Keter
	}), "I need structure", mock.Anything).Return(okResult(), nil).Once()

	_, err = h.svc.Process(ctx, created.SessionID, "I need structure", nil)
	require.NoError(t, err)
	m.AssertExpectations(t)

	tl.AssertField(t, "run started", "session.id", created.SessionID)
	tl.AssertField(t, "run started", "input", "[REDACTED:16]")
}
