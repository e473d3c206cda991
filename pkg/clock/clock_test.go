package clock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateStartsAtZero(t *testing.T) {
	c := NewRate(RateConfig{NUsers: 10, ActionsPerUserDay: 5, Seed: 1})

	// The first timestamp is the pre-advance value.
	assert.Equal(t, 0.0, c.NextTime())
	assert.Greater(t, c.Now(), 0.0)
}

func TestRateMonotone(t *testing.T) {
	c := NewRate(RateConfig{
		NUsers:            50,
		ActionsPerUserDay: 10,
		Circadian:         true,
		SpikeProbability:  0.05,
		Seed:              7,
	})

	prev := -1.0
	for i := 0; i < 2000; i++ {
		v := c.NextTime()
		require.GreaterOrEqual(t, v, prev, "call %d went backwards", i)
		prev = v
	}
}

func TestRateMeanGapMatchesPopulation(t *testing.T) {
	const (
		nUsers = 100
		puda   = 10.0
		draws  = 20000
	)
	c := NewRate(RateConfig{NUsers: nUsers, ActionsPerUserDay: puda, Seed: 3})

	for i := 0; i < draws; i++ {
		c.NextTime()
	}

	wantMean := 1.0 / (nUsers * puda)
	gotMean := c.Now() / draws
	assert.InEpsilon(t, wantMean, gotMean, 0.1,
		"empirical mean gap should track 1/(n_users*puda)")
}

func TestRateDeterministicBySeed(t *testing.T) {
	cfg := RateConfig{NUsers: 20, ActionsPerUserDay: 5, SpikeProbability: 0.01, Circadian: true, Seed: 42}

	a := NewRate(cfg)
	b := NewRate(cfg)
	for i := 0; i < 500; i++ {
		require.Equal(t, a.NextTime(), b.NextTime())
	}

	cfg.Seed = 43
	c := NewRate(cfg)
	same := true
	for i := 0; i < 500; i++ {
		if a.NextTime() != c.NextTime() {
			same = false
			break
		}
	}
	assert.False(t, same, "different seeds should diverge")
}

func TestRateSpikesKeepMonotonicity(t *testing.T) {
	c := NewRate(RateConfig{
		NUsers:            10,
		ActionsPerUserDay: 2,
		SpikeProbability:  1, // every call inside a spike regime
		SpikeMin:          10,
		SpikeMax:          50,
		Seed:              11,
	})

	prev := -1.0
	for i := 0; i < 1000; i++ {
		v := c.NextTime()
		require.GreaterOrEqual(t, v, prev)
		prev = v
	}
	assert.Greater(t, c.Now(), 0.0)
}

func TestCircadianFactor(t *testing.T) {
	// Mean over a full cycle is 1; the factor never drops to zero.
	const steps = 10000
	sum := 0.0
	min := math.Inf(1)
	for i := 0; i < steps; i++ {
		f := circadianFactor(float64(i) / steps)
		sum += f
		if f < min {
			min = f
		}
	}

	assert.InDelta(t, 1.0, sum/steps, 1e-3)
	assert.Greater(t, min, 0.0)

	// Midday gaps are shorter than midnight gaps.
	assert.Less(t, circadianFactor(0.5), circadianFactor(0.0))
}
