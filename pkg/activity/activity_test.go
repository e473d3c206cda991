package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoissonModeTracksMean(t *testing.T) {
	means := make([]float64, 2000)
	for i := range means {
		means[i] = 8
	}
	s := NewSimulator(means, Config{Seed: 1})

	counts := s.SampleDay()
	require.Len(t, counts, len(means))

	total := 0
	for _, c := range counts {
		require.GreaterOrEqual(t, c, 0)
		total += c
	}
	assert.InEpsilon(t, 8.0, float64(total)/float64(len(means)), 0.1)
}

func TestPoissonModeZeroMean(t *testing.T) {
	s := NewSimulator([]float64{0, -1, 5}, Config{Seed: 2})
	counts := s.SampleDay()

	assert.Zero(t, counts[0])
	assert.Zero(t, counts[1])
}

func TestMarkovZeroMeanStaysInactive(t *testing.T) {
	s := NewSimulator([]float64{0}, Config{Markov: true, Seed: 3})
	for day := 0; day < 50; day++ {
		assert.Zero(t, s.SampleDay()[0])
	}
}

func TestMarkovActiveDaysProduceActions(t *testing.T) {
	means := make([]float64, 500)
	for i := range means {
		means[i] = 3
	}
	s := NewSimulator(means, Config{Markov: true, StayActive: 0.7, BecomeActive: 0.3, Seed: 3})

	for day := 0; day < 10; day++ {
		counts := s.SampleDay()
		for i, c := range counts {
			if s.active[i] {
				require.GreaterOrEqual(t, c, 1, "active user %d produced no actions", i)
			} else {
				require.Zero(t, c, "inactive user %d produced actions", i)
			}
		}
	}
}

func TestMarkovActivityFraction(t *testing.T) {
	means := make([]float64, 5000)
	for i := range means {
		means[i] = 2
	}
	// Stationary activity share: 0.3 / (0.3 + 1 - 0.7) = 0.5.
	s := NewSimulator(means, Config{Markov: true, StayActive: 0.7, BecomeActive: 0.3, Seed: 4})

	activeDays := 0
	const days = 20
	for day := 0; day < days; day++ {
		for _, c := range s.SampleDay() {
			if c > 0 {
				activeDays++
			}
		}
	}

	share := float64(activeDays) / float64(len(means)*days)
	assert.InDelta(t, 0.5, share, 0.05)
}

func TestDeterministicBySeed(t *testing.T) {
	means := []float64{1, 2, 3, 4, 5}
	a := NewSimulator(means, Config{Markov: true, Seed: 9})
	b := NewSimulator(means, Config{Markov: true, Seed: 9})

	for day := 0; day < 5; day++ {
		assert.Equal(t, a.SampleDay(), b.SampleDay())
	}
}
