package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins_CanonicalOrder(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Builtins()...)

	assert.Equal(t, CanonicalOrder(), r.IDs())
}

func TestTemplateStage_ConfidenceFromKeywords(t *testing.T) {
	s := NewTemplateStage(Template{
		StageID:  "tiferet",
		Focus:    "harmony",
		Keywords: []string{"balance", "peace"},
		Guidance: []string{"Begin each day with balance practice"},
	})

	none, err := s.Process(context.Background(), "nothing relevant here", nil)
	require.NoError(t, err)
	both, err := s.Process(context.Background(), "I want balance and peace", nil)
	require.NoError(t, err)

	assert.True(t, none.Success)
	assert.InDelta(t, 0.55, none.Confidence, 1e-9)
	assert.InDelta(t, 0.95, both.Confidence, 1e-9)
	assert.Equal(t, []string{"balance", "peace"}, both.Payload.Metadata["matched_keywords"])
}

func TestTemplateStage_UsesPreviousResults(t *testing.T) {
	s := NewTemplateStage(BuiltinTemplates()[0])
	sctx := map[string]any{
		ContextPreviousResults: []Result{{StageID: "malchut", Success: true}},
		ContextPosition:        2,
	}

	res, err := s.Process(context.Background(), "what is my purpose", sctx)
	require.NoError(t, err)
	assert.Contains(t, res.Payload.Insights[len(res.Payload.Insights)-1], "1 earlier stage")
	assert.Equal(t, 2, res.Payload.Metadata["position"])
	assert.EqualValues(t, 1, s.HealthCheck(context.Background())["calls"])
}

func TestTemplateStage_EmptyInputIsSoftFailure(t *testing.T) {
	res, err := NewInvoker().Invoke(context.Background(), NewTemplateStage(BuiltinTemplates()[9]), "   ", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "empty input", res.Error)
}
