package clock

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Clock produces a monotonically non-decreasing sequence of message
// timestamps measured in days. Implementations are not safe for
// concurrent use; the Data Manager holds exclusive access.
type Clock interface {
	// NextTime returns the next timestamp. It is total: it never
	// blocks and never fails.
	NextTime() float64

	// Now returns the current simulation time without advancing.
	Now() float64
}

// RateConfig parameterizes the rate-driven clock.
type RateConfig struct {
	// NUsers and ActionsPerUserDay set the expected inter-event gap:
	// 1 / (NUsers * ActionsPerUserDay) days.
	NUsers            int
	ActionsPerUserDay float64

	// Sigma is the log-normal shape parameter. Zero selects 1.0.
	Sigma float64

	// Circadian modulates gaps by a day/night cycle with mean 1.
	Circadian bool

	// SpikeProbability is the per-call chance of entering a spike
	// regime; a regime bursts or delays gaps by a factor drawn from
	// [SpikeMin, SpikeMax) for a short random run of calls.
	SpikeProbability float64
	SpikeMin         float64
	SpikeMax         float64
	SpikeRunMax      int

	Seed uint64
}

// Rate is the rate-driven clock variant: each call draws a log-normal
// inter-event gap scaled to the population's expected activity, with
// optional circadian modulation and burst/delay spikes.
type Rate struct {
	cfg     RateConfig
	rng     *rand.Rand
	lognorm distuv.LogNormal
	current float64

	spikeLeft   int
	spikeFactor float64
	spikeBurst  bool
}

// circadianAmplitude keeps the day/night factor strictly positive.
const circadianAmplitude = 0.6

// NewRate creates a rate-driven clock starting at time zero.
func NewRate(cfg RateConfig) *Rate {
	if cfg.NUsers <= 0 {
		cfg.NUsers = 1
	}
	if cfg.ActionsPerUserDay <= 0 {
		cfg.ActionsPerUserDay = 1
	}
	if cfg.Sigma <= 0 {
		cfg.Sigma = 1.0
	}
	if cfg.SpikeMin <= 0 {
		cfg.SpikeMin = 10
	}
	if cfg.SpikeMax <= cfg.SpikeMin {
		cfg.SpikeMax = 50
	}
	if cfg.SpikeRunMax <= 0 {
		cfg.SpikeRunMax = 5
	}

	src := rand.NewSource(cfg.Seed)
	rng := rand.New(src)

	// Choose mu so the log-normal's mean exp(mu + sigma^2/2) equals
	// the expected inter-event gap.
	meanDelta := 1.0 / (float64(cfg.NUsers) * cfg.ActionsPerUserDay)
	mu := math.Log(meanDelta) - cfg.Sigma*cfg.Sigma/2

	return &Rate{
		cfg: cfg,
		rng: rng,
		lognorm: distuv.LogNormal{
			Mu:    mu,
			Sigma: cfg.Sigma,
			Src:   src,
		},
	}
}

// NextTime returns the current time, then advances it by a freshly
// drawn inter-event gap.
func (r *Rate) NextTime() float64 {
	t := r.current

	delta := r.lognorm.Rand()

	if r.spikeLeft == 0 && r.cfg.SpikeProbability > 0 && r.rng.Float64() < r.cfg.SpikeProbability {
		r.spikeFactor = r.cfg.SpikeMin + r.rng.Float64()*(r.cfg.SpikeMax-r.cfg.SpikeMin)
		r.spikeLeft = 1 + r.rng.Intn(r.cfg.SpikeRunMax)
		r.spikeBurst = r.rng.Float64() < 0.5
	}
	if r.spikeLeft > 0 {
		if r.spikeBurst {
			delta /= r.spikeFactor
		} else {
			delta *= r.spikeFactor
		}
		r.spikeLeft--
	}

	if r.cfg.Circadian {
		delta *= circadianFactor(t)
	}

	r.current = t + delta
	return t
}

// Now returns the current time without advancing.
func (r *Rate) Now() float64 {
	return r.current
}

// circadianFactor maps a timestamp to a gap multiplier with mean 1
// over a 24-hour cycle: below 1 around midday (dense activity), above
// 1 in the small hours.
func circadianFactor(t float64) float64 {
	frac := t - math.Floor(t)
	return 1 - circadianAmplitude*math.Sin(2*math.Pi*frac-math.Pi/2)
}
