package activity

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config selects and parameterizes the daily activity model.
type Config struct {
	// Markov switches between a two-state activity chain and plain
	// per-user Poisson draws.
	Markov bool

	// StayActive is the chance an active user stays active the next
	// day; BecomeActive the chance an inactive user wakes up.
	StayActive   float64
	BecomeActive float64

	Seed uint64
}

// Simulator draws per-user daily action counts. Users are identified
// by index; the caller keeps the index aligned with its own ordering.
type Simulator struct {
	cfg    Config
	rng    *rand.Rand
	src    rand.Source
	means  []float64
	active []bool
}

// NewSimulator creates a simulator over users with the given mean
// actions per day. In Markov mode initial states are drawn from the
// chain's stationary distribution.
func NewSimulator(means []float64, cfg Config) *Simulator {
	if cfg.StayActive <= 0 || cfg.StayActive > 1 {
		cfg.StayActive = 0.7
	}
	if cfg.BecomeActive <= 0 || cfg.BecomeActive > 1 {
		cfg.BecomeActive = 0.3
	}

	src := rand.NewSource(cfg.Seed)
	s := &Simulator{
		cfg:    cfg,
		rng:    rand.New(src),
		src:    src,
		means:  means,
		active: make([]bool, len(means)),
	}

	if cfg.Markov {
		stationary := cfg.BecomeActive / (cfg.BecomeActive + 1 - cfg.StayActive)
		for i := range s.active {
			s.active[i] = s.rng.Float64() < stationary
		}
	}
	return s
}

// SampleDay draws one day's action count for every user.
func (s *Simulator) SampleDay() []int {
	counts := make([]int, len(s.means))
	for i, mean := range s.means {
		if s.cfg.Markov {
			counts[i] = s.sampleMarkov(i, mean)
		} else {
			counts[i] = s.samplePoisson(mean)
		}
	}
	return counts
}

func (s *Simulator) sampleMarkov(i int, mean float64) int {
	if mean <= 0 {
		return 0
	}
	if s.active[i] {
		s.active[i] = s.rng.Float64() < s.cfg.StayActive
	} else {
		s.active[i] = s.rng.Float64() < s.cfg.BecomeActive
	}
	if !s.active[i] {
		return 0
	}

	// An active day produces at least one action.
	n := s.samplePoisson(mean)
	if n < 1 {
		return 1
	}
	return n
}

func (s *Simulator) samplePoisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	p := distuv.Poisson{Lambda: mean, Src: s.src}
	return int(p.Rand())
}
