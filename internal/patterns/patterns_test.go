package patterns

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
)

// recorder is a stage returning a fixed confidence and keeping the context
// it was called with.
type recorder struct {
	id         string
	confidence float64
	fail       bool
	seen       map[string]any
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Process(_ context.Context, _ string, sctx map[string]any) (*stage.Result, error) {
	r.seen = sctx
	if r.fail {
		return nil, errors.New("unavailable")
	}
	return &stage.Result{
		Success:    true,
		Confidence: r.confidence,
		Payload:    stage.Payload{Insights: []string{r.id + " perspective"}},
	}, nil
}

func (r *recorder) HealthCheck(context.Context) map[string]any {
	return map[string]any{"status": "healthy"}
}

func (r *recorder) previous() []string {
	prior, _ := r.seen[stage.ContextPreviousResults].([]stage.Result)
	ids := make([]string, 0, len(prior))
	for _, p := range prior {
		ids = append(ids, p.StageID)
	}
	return ids
}

func newEngine() *Engine {
	return New(stage.NewInvoker(), synthesis.New())
}

func TestPair_SecondSeesFirst(t *testing.T) {
	a := &recorder{id: "chesed", confidence: 0.8}
	b := &recorder{id: "gevurah", confidence: 0.7}

	res := newEngine().Pair(context.Background(), a, b, "hold firm", map[string]any{"mood": "calm"})

	assert.Equal(t, KindPair, res.Pattern)
	require.Len(t, res.Results, 2)
	assert.Empty(t, a.previous())
	assert.Equal(t, []string{"chesed"}, b.previous())
	assert.Equal(t, "chesed", b.seen[ContextPairedWith])
	assert.Equal(t, "calm", b.seen["mood"])
	assert.Equal(t, 2, b.seen[stage.ContextPosition])
	assert.Contains(t, res.Narrative, "built on it")
	assert.Equal(t, 2, res.Synthesis.SuccessfulStages)
}

func TestTriad_ContextFlow(t *testing.T) {
	mid := &recorder{id: "tiferet", confidence: 0.9}
	left := &recorder{id: "chesed", confidence: 0.8}
	right := &recorder{id: "gevurah", confidence: 0.6}

	res := newEngine().Triad(context.Background(), mid, left, right, "balance", nil)

	assert.Empty(t, mid.previous())
	assert.Equal(t, []string{"tiferet"}, left.previous())
	assert.Equal(t, []string{"tiferet", "chesed"}, right.previous())
	assert.Equal(t, "balance", mid.seen[ContextRole])

	require.NotNil(t, res.Balance)
	assert.InDelta(t, 0.75, res.Balance.Ratio, 1e-9)
	assert.Equal(t, RatingGood, res.Balance.Rating)
	assert.Equal(t, "gevurah", res.Balance.GrowthFocus)
	assert.Contains(t, res.Narrative, "Growth focus: gevurah")
}

func TestPolarityBalance(t *testing.T) {
	ok := func(id string, c float64) stage.Result {
		return stage.Result{StageID: id, Success: true, Confidence: c}
	}
	failed := stage.Result{StageID: "gevurah", Error: "x"}

	tests := []struct {
		name   string
		a, b   stage.Result
		ratio  float64
		rating string
		focus  string
	}{
		{"equal", ok("chesed", 0.8), ok("gevurah", 0.8), 1, RatingExcellent, ""},
		{"close", ok("chesed", 0.9), ok("gevurah", 0.85), 0.944444, RatingExcellent, "gevurah"},
		{"developing", ok("chesed", 0.4), ok("gevurah", 0.8), 0.5, RatingDeveloping, "chesed"},
		{"one failed", ok("chesed", 0.9), failed, 0, RatingDeveloping, "gevurah"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal := PolarityBalance(tt.a, tt.b)
			assert.InDelta(t, tt.ratio, bal.Ratio, 1e-6)
			assert.Equal(t, tt.rating, bal.Rating)
			assert.Equal(t, tt.focus, bal.GrowthFocus)
		})
	}
}

func TestPillar_AccumulatesAndProgresses(t *testing.T) {
	stages := []*recorder{
		{id: "keter", confidence: 0.9},
		{id: "tiferet", confidence: 0.8},
		{id: "yesod", fail: true},
		{id: "malchut", confidence: 0.7},
	}
	in := make([]stage.Stage, len(stages))
	for i, s := range stages {
		in[i] = s
	}

	res := newEngine().Pillar(context.Background(), in, "rise", nil)

	assert.Equal(t, KindPillar, res.Pattern)
	assert.Equal(t, []string{"keter", "tiferet", "yesod"}, stages[3].previous())
	assert.InDelta(t, 75.0, res.Progression, 1e-9)
	assert.Equal(t, 3, res.Synthesis.SuccessfulStages)
	assert.Equal(t, 4, res.Synthesis.TotalStages)
	assert.Contains(t, res.Narrative, "75%")
}

func TestRoute(t *testing.T) {
	mk := func(n int) []stage.Stage {
		ids := []string{"keter", "chesed", "tiferet", "gevurah", "malchut"}
		out := make([]stage.Stage, n)
		for i := range out {
			out[i] = &recorder{id: ids[i], confidence: 0.8}
		}
		return out
	}
	e := newEngine()
	ctx := context.Background()

	_, err := e.Route(ctx, nil, "x", nil)
	assert.ErrorIs(t, err, ErrNoStages)

	tests := []struct {
		n    int
		want Kind
	}{
		{1, KindSequential},
		{2, KindPair},
		{3, KindTriad},
		{4, KindPillar},
		{5, KindPillar},
	}
	for _, tt := range tests {
		res, err := e.Route(ctx, mk(tt.n), "x", nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Pattern, "n=%d", tt.n)
		assert.Len(t, res.Results, tt.n)
	}

	triad := mk(3)
	res, err := e.Route(ctx, triad, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "chesed", res.Results[0].StageID, "middle stage runs first as balance")
}

func TestProgression_Empty(t *testing.T) {
	assert.Zero(t, Progression(nil))
}
