package lightning

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/stagehand/internal/stage"
)

func TestPathways_CoverEveryStageOnce(t *testing.T) {
	want := stage.CanonicalOrder()
	sort.Strings(want)

	infos := Pathways()
	require.Len(t, infos, 5)
	for _, info := range infos {
		got := append([]string(nil), info.Stages...)
		sort.Strings(got)
		assert.Equal(t, want, got, info.Name)
	}
}

func TestLookupPathway(t *testing.T) {
	p, err := LookupPathway(" Spiral ")
	require.NoError(t, err)
	assert.Equal(t, []string{stage.Keter, stage.Malchut, stage.Chokmah, stage.Yesod, stage.Binah}, p.Stages[:5])

	asc, err := LookupPathway("ascent")
	require.NoError(t, err)
	assert.Equal(t, stage.Malchut, asc.Stages[0])
	assert.Equal(t, stage.Keter, asc.Stages[9])

	centered, err := LookupPathway("centered")
	require.NoError(t, err)
	assert.Equal(t, stage.Tiferet, centered.Stages[0])

	_, err = LookupPathway("nope")
	assert.ErrorIs(t, err, ErrUnknownPathway)
}

func TestPathway_Energy(t *testing.T) {
	p, err := LookupPathway("classic")
	require.NoError(t, err)

	assert.InDelta(t, p.EnergyBase, p.Energy(0), 1e-9)
	assert.InDelta(t, 1.0, p.Energy(9), 1e-9)
	for i := 1; i < 10; i++ {
		assert.Greater(t, p.Energy(i), p.Energy(i-1))
	}
	assert.Equal(t, p.Energy(4), p.Energy(4))
}

func TestProfile_Delays(t *testing.T) {
	p, err := ProfileFor(Gentle)
	require.NoError(t, err)

	d := p.Delays(10)
	require.Len(t, d, 10)
	assert.Equal(t, 3*time.Second, d[0])
	assert.Equal(t, 1500*time.Millisecond, d[9])
	for i := 1; i < len(d); i++ {
		assert.LessOrEqual(t, d[i], d[i-1])
	}

	assert.True(t, p.PausesBefore(2))
	assert.True(t, p.PausesBefore(8))
	assert.False(t, p.PausesBefore(3))

	bt, err := ProfileFor(Breakthrough)
	require.NoError(t, err)
	assert.Empty(t, bt.PauseSteps)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, bt.Delays(1))

	_, err = ProfileFor("wild")
	assert.ErrorIs(t, err, ErrUnknownIntensity)
}

func TestRealClock_SleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(epoch)
	require.NoError(t, c.Sleep(context.Background(), 2*time.Second))
	c.Advance(time.Second)
	assert.Equal(t, epoch.Add(3*time.Second), c.Now())
	assert.Equal(t, []time.Duration{2 * time.Second}, c.Sleeps())
}
