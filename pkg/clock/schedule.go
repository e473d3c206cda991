package clock

import (
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// ScheduleConfig parameterizes the pre-materialized day schedule.
type ScheduleConfig struct {
	// Circadian density: two Gaussian peaks (hours of day) over a
	// uniform baseline.
	Peak1Hour      float64
	Peak2Hour      float64
	SigmaHours     float64
	BaselineWeight float64

	// Bins is the CDF discretization. Zero selects 1440 (one per
	// minute).
	Bins int

	Seed uint64
}

const (
	// fallbackWindow is how far inside the day boundary the first
	// fallback timestamp sits.
	fallbackWindow = 1e-6

	// maxDayFrac caps materialized timestamps so fallbacks always
	// sort after them.
	maxDayFrac = 1 - 2*fallbackWindow
)

// Schedule is the pre-materialized clock variant: the Data Manager
// hands it the population's action counts for each new day and it
// deals out that many circadian-distributed timestamps in order.
// When a day runs dry before the next one is queued it emits fallback
// values pinned just inside the day boundary.
type Schedule struct {
	cfg ScheduleConfig
	rng *rand.Rand
	cdf []float64

	started  bool
	day      int
	today    []float64
	pending  [][]int
	overflow int
	current  float64
}

// NewSchedule creates a day-schedule clock. No day is in progress
// until the first StartNewDay call.
func NewSchedule(cfg ScheduleConfig) *Schedule {
	if cfg.Peak1Hour <= 0 {
		cfg.Peak1Hour = 9
	}
	if cfg.Peak2Hour <= 0 {
		cfg.Peak2Hour = 20
	}
	if cfg.SigmaHours <= 0 {
		cfg.SigmaHours = 2.5
	}
	if cfg.BaselineWeight <= 0 || cfg.BaselineWeight >= 1 {
		cfg.BaselineWeight = 0.25
	}
	if cfg.Bins <= 0 {
		cfg.Bins = 1440
	}

	s := &Schedule{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	s.buildCDF()
	return s
}

// buildCDF discretizes the circadian density over a 24-hour cycle.
func (s *Schedule) buildCDF() {
	peak1 := distuv.Normal{Mu: s.cfg.Peak1Hour, Sigma: s.cfg.SigmaHours}
	peak2 := distuv.Normal{Mu: s.cfg.Peak2Hour, Sigma: s.cfg.SigmaHours}

	bins := s.cfg.Bins
	pdf := make([]float64, bins)
	total := 0.0
	for i := 0; i < bins; i++ {
		hour := (float64(i) + 0.5) * 24 / float64(bins)
		density := s.cfg.BaselineWeight/24 +
			(1-s.cfg.BaselineWeight)*(peak1.Prob(hour)+peak2.Prob(hour))/2
		pdf[i] = density
		total += density
	}

	s.cdf = make([]float64, bins)
	acc := 0.0
	for i, p := range pdf {
		acc += p / total
		s.cdf[i] = acc
	}
	s.cdf[bins-1] = 1
}

// sampleFrac inverse-CDF samples a day fraction in [0, maxDayFrac].
func (s *Schedule) sampleFrac() float64 {
	u := s.rng.Float64()
	i := sort.SearchFloat64s(s.cdf, u)
	if i >= len(s.cdf) {
		i = len(s.cdf) - 1
	}

	lo := 0.0
	if i > 0 {
		lo = s.cdf[i-1]
	}
	width := s.cdf[i] - lo
	within := 0.5
	if width > 0 {
		within = (u - lo) / width
	}

	frac := (float64(i) + within) / float64(len(s.cdf))
	if frac > maxDayFrac {
		frac = maxDayFrac
	}
	return frac
}

// StartNewDay feeds the per-user action counts of a new day. If a day
// is already in progress the request queues; it begins automatically
// once the current day empties.
func (s *Schedule) StartNewDay(counts []int) {
	if s.started {
		s.pending = append(s.pending, counts)
		return
	}
	s.started = true
	s.beginDay(counts)
}

// beginDay materializes sum(counts) sorted timestamps inside the day.
func (s *Schedule) beginDay(counts []int) {
	total := 0
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}

	s.today = make([]float64, 0, total)
	for i := 0; i < total; i++ {
		s.today = append(s.today, float64(s.day)+s.sampleFrac())
	}
	sort.Float64s(s.today)
}

// NextTime pops the next materialized timestamp. With the current day
// exhausted, queued days begin in order; with nothing queued it
// returns strictly increasing fallback values bounded inside the
// current day.
func (s *Schedule) NextTime() float64 {
	for len(s.today) == 0 && len(s.pending) > 0 {
		counts := s.pending[0]
		s.pending = s.pending[1:]
		s.day++
		s.beginDay(counts)
	}

	if len(s.today) == 0 {
		return s.fallback()
	}

	v := s.today[0]
	s.today = s.today[1:]
	if v < s.current {
		v = s.current
	}
	s.current = v
	return v
}

// Now returns the current time without advancing.
func (s *Schedule) Now() float64 {
	return s.current
}

// Day returns the index of the day in progress.
func (s *Schedule) Day() int {
	return s.day
}

// Remaining returns how many materialized timestamps are left today.
func (s *Schedule) Remaining() int {
	return len(s.today)
}

// fallback emits values converging on the day boundary from below,
// each strictly greater than the last.
func (s *Schedule) fallback() float64 {
	s.overflow++
	v := float64(s.day+1) - fallbackWindow/float64(s.overflow+1)
	if v < s.current {
		v = s.current
	}
	s.current = v
	return v
}
