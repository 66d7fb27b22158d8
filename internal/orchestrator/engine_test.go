package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestOrder(t *testing.T) {
	ids := []string{"a", "b", "c"}

	got, err := Order(workflow.Descending, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	got, err = Order(workflow.Ascending, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, got)
	assert.Equal(t, []string{"a", "b", "c"}, ids, "input untouched")

	got, err = Order(workflow.Balancing, ids)
	require.NoError(t, err)
	assert.Equal(t, ids, got)

	_, err = Order(workflow.Lightning, ids)
	assert.ErrorIs(t, err, ErrLightningFlow)

	_, err = Order("sideways", ids)
	assert.ErrorIs(t, err, workflow.ErrInvalidFlowPattern)
}

// withSession creates a session and runs fn on the live value.
func withSession(t *testing.T, h *harness, req session.CreateRequest, fn func(*session.Session) error) string {
	t.Helper()
	sess, err := h.sessions.Create(context.Background(), req)
	require.NoError(t, err)
	if fn != nil {
		require.NoError(t, h.sessions.WithSession(context.Background(), sess.ID, fn))
	}
	return sess.ID
}

func TestEngine_RunWorkflow_AccumulatesContext(t *testing.T) {
	a, b, c := fixed("keter", 0.9), fixed("tiferet", 0.8), fixed("malchut", 0.7)
	h := newHarness(t, registryOf(a, b, c), nil)

	var results []stage.Result
	var syn *synthesis.Synthesis
	id := withSession(t, h, session.CreateRequest{OwnerID: "u1", ExplicitStages: []string{"keter", "tiferet", "malchut"}},
		func(s *session.Session) error {
			var err error
			results, syn, err = h.engine.RunWorkflow(context.Background(), s, "hello", map[string]any{"mood": "curious"})
			return err
		})

	require.Len(t, results, 3)
	assert.Equal(t, []string{"keter", "tiferet", "malchut"}, []string{results[0].StageID, results[1].StageID, results[2].StageID})

	require.Len(t, c.seen, 1)
	prior := c.seen[0][stage.ContextPreviousResults].([]stage.Result)
	assert.Len(t, prior, 2)
	assert.Equal(t, 3, c.seen[0][stage.ContextPosition])
	assert.Equal(t, 3, c.seen[0][stage.ContextTotalStages])
	assert.Equal(t, "curious", c.seen[0]["mood"])
	assert.Empty(t, a.seen[0][stage.ContextPreviousResults])

	assert.InDelta(t, 0.8, syn.Confidence, 1e-9)

	sess, err := h.sessions.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Same(t, syn, sess.LatestSynthesis)
	assert.Equal(t, session.EventSynthesisCompleted, sess.History[len(sess.History)-1].Type)
}

func TestEngine_RunWorkflow_Ascending(t *testing.T) {
	h := newHarness(t, registryOf(fixed("keter", 0.9), fixed("tiferet", 0.8), fixed("malchut", 0.7)), nil)

	var results []stage.Result
	withSession(t, h, session.CreateRequest{
		OwnerID:        "u1",
		ExplicitStages: []string{"keter", "tiferet", "malchut"},
		FlowPattern:    workflow.Ascending,
	}, func(s *session.Session) error {
		var err error
		results, _, err = h.engine.RunWorkflow(context.Background(), s, "x", nil)
		return err
	})

	require.Len(t, results, 3)
	assert.Equal(t, "malchut", results[0].StageID)
	assert.Equal(t, "keter", results[2].StageID)
}

func TestEngine_PartialFailure(t *testing.T) {
	h := newHarness(t, registryOf(fixed("keter", 0.9), failing("tiferet"), fixed("malchut", 0.7)), nil)

	var results []stage.Result
	var syn *synthesis.Synthesis
	withSession(t, h, session.CreateRequest{OwnerID: "u1", ExplicitStages: []string{"keter", "tiferet", "malchut"}},
		func(s *session.Session) error {
			var err error
			results, syn, err = h.engine.RunWorkflow(context.Background(), s, "x", nil)
			return err
		})

	require.Len(t, results, 3)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success, "failure does not abort the sequence")
	assert.Equal(t, 2, syn.SuccessfulStages)
	assert.Equal(t, 3, syn.TotalStages)
	assert.InDelta(t, 0.8, syn.Confidence, 1e-9)
}

func TestEngine_AllFailuresStillSynthesize(t *testing.T) {
	h := newHarness(t, registryOf(failing("keter"), failing("malchut")), nil)

	var syn *synthesis.Synthesis
	withSession(t, h, session.CreateRequest{OwnerID: "u1", ExplicitStages: []string{"keter", "malchut"}},
		func(s *session.Session) error {
			var err error
			_, syn, err = h.engine.RunWorkflow(context.Background(), s, "x", nil)
			return err
		})

	require.NotNil(t, syn)
	assert.Equal(t, synthesis.ErrNoSuccessfulProcessing, syn.Error)
	assert.Zero(t, syn.Confidence)
}

func TestEngine_CanceledContextSkipsInvocation(t *testing.T) {
	first := NewMockStage("keter")
	second := NewMockStage("malchut")
	h := newHarness(t, registryOf(first, second), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first.On("Process", mock.Anything, "x", mock.Anything).
		Return(&stage.Result{Success: true, Confidence: 0.9}, nil)
	h.engine.OnProgress(func(p StageProgress) {
		if p.StageID == "keter" && p.Status == StatusCompleted {
			cancel()
		}
	})

	var results []stage.Result
	withSession(t, h, session.CreateRequest{OwnerID: "u1", ExplicitStages: []string{"keter", "malchut"}},
		func(s *session.Session) error {
			var err error
			results, _, err = h.engine.RunWorkflow(ctx, s, "x", nil)
			return err
		})

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "canceled")
	second.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
	first.AssertExpectations(t)
}

func TestEngine_Timeout(t *testing.T) {
	slow := &stage.Func{StageID: "keter", Fn: func(ctx context.Context, _ string, _ map[string]any) (*stage.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	reg := registryOf(slow, fixed("malchut", 0.6))
	invoker := stage.NewInvoker(stage.WithTimeout(20 * time.Millisecond))
	engine := NewEngine(reg, invoker, synthesis.New())

	results := engine.RunStages(context.Background(), []string{"keter", "malchut"}, "x", nil)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "timed out")
	assert.True(t, results[1].Success)
}

func TestEngine_RunWorkflowRejectsLightningAndClosed(t *testing.T) {
	h := newHarness(t, builtinRegistry(), nil)

	withSession(t, h, session.CreateRequest{OwnerID: "u1", WorkflowName: "lightning_activation"},
		func(s *session.Session) error {
			_, _, err := h.engine.RunWorkflow(context.Background(), s, "x", nil)
			assert.ErrorIs(t, err, ErrLightningFlow)
			return nil
		})

	id := withSession(t, h, session.CreateRequest{OwnerID: "u1"}, nil)
	_, err := h.sessions.Complete(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, h.sessions.WithSession(context.Background(), id, func(s *session.Session) error {
		_, _, err := h.engine.RunWorkflow(context.Background(), s, "x", nil)
		assert.ErrorIs(t, err, session.ErrSessionClosed)
		return nil
	}))
}

func TestEngine_ProgressCallback(t *testing.T) {
	reg := registryOf(fixed("keter", 0.9), failing("malchut"))
	engine := NewEngine(reg, stage.NewInvoker(), synthesis.New())

	var progress []StageProgress
	engine.OnProgress(func(p StageProgress) { progress = append(progress, p) })

	engine.RunStages(context.Background(), []string{"keter", "ghost", "malchut"}, "x", nil)

	require.Len(t, progress, 5)
	assert.Equal(t, StatusSkipped, progress[0].Status)
	assert.Equal(t, "ghost", progress[0].StageID)
	assert.Equal(t, StatusInProgress, progress[1].Status)
	assert.Equal(t, 0, progress[1].Percentage)
	assert.Equal(t, StatusCompleted, progress[2].Status)
	assert.Equal(t, 50, progress[2].Percentage)
	assert.Equal(t, StatusFailed, progress[4].Status)
	assert.Equal(t, 100, progress[4].Percentage)
}
