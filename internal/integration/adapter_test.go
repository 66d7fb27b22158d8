package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// seqRunner runs registered stages in order, passing prior results along.
type seqRunner struct {
	stages  *stage.Registry
	invoker *stage.Invoker
	calls   [][]string
	seen    []map[string]any
}

func (r *seqRunner) RunStages(ctx context.Context, ids []string, input string, base map[string]any) []stage.Result {
	r.calls = append(r.calls, ids)
	var out []stage.Result
	for i, id := range ids {
		s, err := r.stages.Get(id)
		if err != nil {
			continue
		}
		sctx := stage.Clone(base)
		sctx[stage.ContextPreviousResults] = append([]stage.Result(nil), out...)
		sctx[stage.ContextPosition] = i + 1
		r.seen = append(r.seen, sctx)
		res, _ := r.invoker.Invoke(ctx, s, input, sctx)
		out = append(out, *res)
	}
	return out
}

type fixture struct {
	adapter  *Adapter
	sessions *session.Manager
	runner   *seqRunner
	session  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stages := stage.NewRegistry()
	stages.MustRegister(stage.Builtins()...)
	wfs, err := workflow.NewBuiltinRegistry()
	require.NoError(t, err)

	mgr := session.NewManager(stages, wfs)
	invoker := stage.NewInvoker()
	runner := &seqRunner{stages: stages, invoker: invoker}
	a := NewAdapter(mgr, runner, invoker, synthesis.New(), WithRateLimit(600, 10))
	require.NoError(t, a.RegisterBuiltins())

	sess, err := mgr.Create(context.Background(), session.CreateRequest{OwnerID: "u1"})
	require.NoError(t, err)
	return &fixture{adapter: a, sessions: mgr, runner: runner, session: sess.ID}
}

func TestAdapter_Process(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.adapter.Process(ctx, ModuleJournaling, f.session, "I want to journal about how I feel today", nil)
	require.NoError(t, err)

	assert.Equal(t, ModuleJournaling, out.Module)
	assert.True(t, out.ModuleResult.Success)
	assert.Equal(t, []string{stage.Yesod, stage.Malchut}, out.MappedStages)
	assert.Len(t, out.StageResults, 2)
	assert.Equal(t, 3, out.Synthesis.TotalStages)
	assert.Equal(t, 3, out.Synthesis.SuccessfulStages)

	require.Len(t, f.runner.seen, 2)
	assert.Equal(t, ModuleJournaling, f.runner.seen[0][ContextExternalModule])
	ext, ok := f.runner.seen[0][ContextExternalResult].(stage.Result)
	require.True(t, ok)
	assert.Equal(t, ModuleJournaling, ext.StageID)

	sess, err := f.sessions.Get(ctx, f.session)
	require.NoError(t, err)
	last := sess.History[len(sess.History)-1]
	assert.Equal(t, session.EventAdapterProcessed, last.Type)
	assert.Equal(t, ModuleJournaling, last.Payload["module"])
	assert.Same(t, out.Synthesis, sess.LatestSynthesis)
	assert.Equal(t, 1, sess.ProcessingCount())
}

func TestAdapter_UnknownModule(t *testing.T) {
	f := newFixture(t)

	_, err := f.adapter.Process(context.Background(), "astrology", f.session, "x", nil)
	assert.ErrorIs(t, err, ErrUnknownModule)
	assert.Empty(t, f.runner.calls)
}

func TestAdapter_ClosedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sessions.Complete(ctx, f.session)
	require.NoError(t, err)

	before, err := f.sessions.Get(ctx, f.session)
	require.NoError(t, err)

	_, err = f.adapter.Process(ctx, ModuleMeditation, f.session, "calm", nil)
	assert.ErrorIs(t, err, session.ErrSessionClosed)

	after, err := f.sessions.Get(ctx, f.session)
	require.NoError(t, err)
	assert.Len(t, after.History, len(before.History))
}

func TestAdapter_MissingSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.adapter.Process(context.Background(), ModuleMeditation, "nope", "calm", nil)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestAdapter_FailingModuleIsRecorded(t *testing.T) {
	f := newFixture(t)
	broken := &stage.Func{StageID: "oracle", Fn: func(context.Context, string, map[string]any) (*stage.Result, error) {
		return nil, errors.New("offline")
	}}
	require.NoError(t, f.adapter.Register(broken, []string{stage.Keter}))

	out, err := f.adapter.Process(context.Background(), "oracle", f.session, "purpose", nil)
	require.NoError(t, err)
	assert.False(t, out.ModuleResult.Success)
	assert.Contains(t, out.ModuleResult.Error, "offline")
	assert.Equal(t, 1, out.Synthesis.SuccessfulStages)
	assert.Equal(t, 2, out.Synthesis.TotalStages)
}

func TestAdapter_Register(t *testing.T) {
	f := newFixture(t)
	m := BuiltinModules()[0]

	assert.ErrorIs(t, f.adapter.Register(m, []string{stage.Keter}), ErrDuplicateModule)
	assert.ErrorIs(t, f.adapter.Register(&stage.Func{StageID: "x"}, nil), ErrUnmappedModule)
	assert.ErrorIs(t, f.adapter.Register(nil, []string{stage.Keter}), stage.ErrNilStage)
	assert.Len(t, f.adapter.Modules(), 5)
}

func TestAdapter_RateLimitHonorsContext(t *testing.T) {
	f := newFixture(t)
	f.adapter.limiter.SetBurst(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.adapter.Process(ctx, ModuleMeditation, f.session, "calm", nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}
