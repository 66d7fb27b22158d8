package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

func ok(id string, confidence float64, insights, guidance []string) stage.Result {
	return stage.Result{
		StageID:    id,
		Success:    true,
		Confidence: confidence,
		Payload:    stage.Payload{Insights: insights, Guidance: guidance},
	}
}

func failed(id string) stage.Result {
	return stage.Result{StageID: id, Error: "boom"}
}

func TestTokenOverlap_Score(t *testing.T) {
	sim := TokenOverlap{}

	assert.InDelta(t, 1.0, sim.Score("Clarity about purpose", "purpose, about clarity"), 1e-9)
	assert.InDelta(t, 2.0/3.0, sim.Score("Clarity about purpose", "purpose brings clarity"), 1e-9)
	assert.InDelta(t, 0.5, sim.Score("balance and harmony", "balance the calendar"), 1e-9)
	assert.InDelta(t, 1.0/3.0, sim.Score("harmony through balance", "balance your calendar"), 1e-9)
	assert.Zero(t, sim.Score("a an the", "balance"))
	assert.Zero(t, sim.Score("", "balance"))
}

func TestEngine_UnifyThresholdIsExclusive(t *testing.T) {
	in := []string{"first observation", "second observation"}

	atThreshold := New(WithSimilarity(SimilarityFunc(func(a, b string) float64 { return DefaultThreshold })))
	assert.Equal(t, in, atThreshold.Unify(in), "a score equal to the threshold is not a duplicate")

	above := New(WithSimilarity(SimilarityFunc(func(a, b string) float64 { return DefaultThreshold + 1e-6 })))
	assert.Equal(t, in[:1], above.Unify(in))
}

func TestEngine_Unify(t *testing.T) {
	e := New()
	in := []string{
		"Clarity about purpose shapes every choice",
		"Every choice is shaped by purpose clarity",
		"Harmony comes from holding opposing needs",
		"",
		"clarity about purpose shapes every choice",
	}

	got := e.Unify(in)
	assert.Equal(t, []string{
		"Clarity about purpose shapes every choice",
		"Harmony comes from holding opposing needs",
	}, got)
}

func TestEngine_UnifyIdempotent(t *testing.T) {
	e := New(WithCaps(3, 4, 3))
	in := []string{
		"Structure turns scattered thoughts into understanding",
		"Persistence matters more than intensity",
		"Scattered thoughts need structure",
		"Gratitude reframes obstacles",
		"Small practical actions make intentions real",
		"Generosity restores energy",
	}

	once := e.Unify(in)
	assert.Len(t, once, 3)
	assert.Equal(t, once, e.Unify(once))
}

func TestEngine_PrioritizeGuidance(t *testing.T) {
	e := New()
	got := e.PrioritizeGuidance([]string{
		"Reflect on what meaning this holds",
		"Start with one practical action now",
		"Consider which possibility excites you",
		"Write down your purpose",
		"Start with one practical action right now",
		"Appreciate supportive relationships",
		"Notice repeating patterns",
		"Build a plan",
		"Schedule a review",
		"Set a boundary",
	})

	assert.Equal(t, []string{
		"Start with one practical action now",
		"Write down your purpose",
		"Build a plan",
		"Schedule a review",
		"Reflect on what meaning this holds",
		"Consider which possibility excites you",
		"Appreciate supportive relationships",
	}, got)
}

func TestIsActionable(t *testing.T) {
	assert.True(t, IsActionable("Begin each day slowly"))
	assert.True(t, IsActionable("please SET a reminder"))
	assert.False(t, IsActionable("Settle into the moment"))
	assert.False(t, IsActionable("Reflect quietly"))
}

func TestClassifyTheme(t *testing.T) {
	tests := map[string]string{
		"Practice kindness with family":      ThemeRelational,
		"Begin each day with stillness":      ThemeDailyPractice,
		"Start with one practical action":    ThemeManifestation,
		"Seek balance between work and rest": ThemeHarmony,
		"Trust the ground beneath you":       ThemeFoundation,
		"Consider the question again":        ThemeGeneral,
	}
	for in, want := range tests {
		assert.Equal(t, want, ClassifyTheme(in), in)
	}
}

func TestBuildRoadmap(t *testing.T) {
	r := BuildRoadmap([]string{
		"Start with one practical action now",
		"Schedule a weekly gratitude review",
		"Commit to a small habit for the next month",
		"Notice what you already know",
	})

	assert.Equal(t, []string{"Start with one practical action now"}, r.Immediate)
	assert.Equal(t, []string{"Schedule a weekly gratitude review"}, r.Weekly)
	assert.Equal(t, []string{"Commit to a small habit for the next month"}, r.Monthly)
	assert.Equal(t, []string{"Notice what you already know"}, r.Ongoing)

	empty := BuildRoadmap(nil)
	assert.Equal(t, []string{DefaultImmediate}, empty.Immediate)
	assert.Equal(t, []string{DefaultWeekly}, empty.Weekly)
	assert.Equal(t, []string{DefaultMonthly}, empty.Monthly)
	assert.Equal(t, []string{DefaultOngoing}, empty.Ongoing)
}

func TestGrade(t *testing.T) {
	assert.Equal(t, QualityExcellent, Grade(3, 0.8))
	assert.Equal(t, QualityGood, Grade(2, 0.95))
	assert.Equal(t, QualityGood, Grade(3, 0.75))
	assert.Equal(t, QualityAdequate, Grade(1, 0.9))
	assert.Equal(t, QualityNeedsImprovement, Grade(5, 0.4))
	assert.Equal(t, QualityNeedsImprovement, Grade(0, 0))
}

func TestEngine_SynthesizeFoundationBuilding(t *testing.T) {
	e := New()
	results := []stage.Result{
		ok("yesod", 0.8, []string{"A stable foundation lets change happen"}, []string{"Set a regular routine that grounds you"}),
		ok("malchut", 0.9, []string{"Small practical actions make intentions real"}, []string{"Start with one practical action now"}),
		ok("binah", 0.7, []string{"Structure turns thoughts into understanding"}, []string{"Notice the pattern that keeps repeating"}),
	}

	syn := e.Synthesize(results)

	assert.InDelta(t, 0.8, syn.Confidence, 1e-9)
	assert.Equal(t, QualityExcellent, syn.Quality)
	assert.Equal(t, 3, syn.SuccessfulStages)
	assert.Equal(t, 3, syn.TotalStages)
	assert.Empty(t, syn.Error)
	assert.Len(t, syn.Insights, 3)
	assert.Len(t, syn.Synergies, 3)
	assert.Equal(t, "yesod", syn.Synergies[1].With)
	assert.Contains(t, syn.Narrative, "3 of 3")
	assert.NotEmpty(t, syn.NextSteps)
}

func TestEngine_SynthesizeNoSuccesses(t *testing.T) {
	syn := New().Synthesize([]stage.Result{failed("keter"), failed("hod")})

	assert.Equal(t, ErrNoSuccessfulProcessing, syn.Error)
	assert.True(t, syn.Failed())
	assert.Zero(t, syn.Confidence)
	assert.Equal(t, QualityNeedsImprovement, syn.Quality)
	assert.Equal(t, 2, syn.TotalStages)
	assert.NotEmpty(t, syn.Roadmap.Immediate)
}

func TestEngine_SynthesizeDeterministic(t *testing.T) {
	e := New()
	results := []stage.Result{
		ok("keter", 0.9, []string{"Purpose shapes choices", "Direction matters"}, []string{"Write down your purpose today", "Reflect on meaning"}),
		failed("chokmah"),
		ok("tiferet", 0.6, []string{"Harmony holds opposites"}, []string{"Begin each day with balance practice"}),
	}

	first := e.Synthesize(results)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Synthesize(results))
	}
}

func TestEngine_PartialFailureConfidence(t *testing.T) {
	e := New()
	ids := []string{"keter", "chokmah", "binah", "chesed"}

	prevRank := 4
	for k := 0; k <= len(ids); k++ {
		results := make([]stage.Result, 0, len(ids))
		for i, id := range ids {
			if i < k {
				results = append(results, failed(id))
				continue
			}
			results = append(results, ok(id, 0.85, []string{id + " insight text"}, nil))
		}

		syn := e.Synthesize(results)
		require.Equal(t, len(ids)-k, syn.SuccessfulStages)
		if k < len(ids) {
			assert.InDelta(t, 0.85, syn.Confidence, 1e-9, "failed stages carry no weight")
		}
		assert.LessOrEqual(t, syn.Quality.Rank(), prevRank, "quality must not improve as failures grow (k=%d)", k)
		prevRank = syn.Quality.Rank()
	}
}

func TestEngine_CustomSimilarity(t *testing.T) {
	never := SimilarityFunc(func(string, string) float64 { return 0 })
	e := New(WithSimilarity(never), WithThreshold(0.9))

	got := e.Unify([]string{"purpose shapes choices", "choices shaped by purpose"})
	assert.Len(t, got, 2)
}
