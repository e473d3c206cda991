package analyzer

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

// emaRho is the smoothing factor of the EMA quality criterion: the new
// estimate keeps 80% of the old one.
const emaRho = 0.8

// monitor tracks everything the convergence criteria and the verbose
// interval reports need. It observes packs after they are persisted,
// so a reached goal never cuts rows off the output files.
type monitor struct {
	cfg    Config
	logger zerolog.Logger

	// Maximum clock time seen on any firehose message. The monitor
	// reads the same stream persist writes, so when the day-count goal
	// fires the crossing row is already on disk.
	day float64

	// Sliding-window state.
	windowSum   float64
	windowCount int
	prevAvg     float64
	havePrev    bool

	// EMA state. The estimate starts at 1, the top of the quality
	// scale, so early windows cannot converge by accident.
	emaQuality  float64
	emaSum      float64
	emaCount    int
	userUpdates int

	// Interval reporting state.
	intervalQuality float64
	intervalAppeal  float64
	intervalCount   int

	// Whole-run accumulators. Root share counts feed the diversity
	// measure and grow with the number of distinct chain roots.
	rootCounts   map[string]int
	totalQuality float64
	totalAppeal  float64
	totalCount   int
}

func newMonitor(cfg Config) *monitor {
	return &monitor{
		cfg:        cfg,
		emaQuality: 1.0,
		rootCounts: make(map[string]int),
		logger:     log.WithComponent("convergence"),
	}
}

// observe folds one pack into the monitor and reports whether the
// run's goal is reached, with a human-readable reason.
func (mon *monitor) observe(pack *types.AnalyzerPack) (string, bool) {
	done := false
	reason := ""
	note := func(r string) {
		if !done {
			done, reason = true, r
		}
	}

	mon.userUpdates += len(pack.Users)

	for _, chunk := range pack.Firehose {
		for _, m := range chunk.Messages {
			if m.Time > mon.day {
				mon.day = m.Time
			}

			mon.rootCounts[m.RootID()]++
			mon.totalQuality += m.Quality
			mon.totalAppeal += m.Appeal
			mon.totalCount++

			mon.intervalQuality += m.Quality
			mon.intervalAppeal += m.Appeal
			mon.intervalCount++
			if mon.cfg.Verbose && mon.cfg.PrintInterval > 0 && mon.intervalCount >= mon.cfg.PrintInterval {
				mon.report()
			}

			if mon.cfg.Method == SlidingWindow {
				mon.windowSum += m.Quality
				mon.windowCount++
				if mon.windowCount >= mon.cfg.WindowSize {
					if r, ok := mon.closeWindow(); ok {
						note(r)
					}
				}
			} else if mon.cfg.Method == EMAQuality {
				mon.emaSum += m.Quality
				mon.emaCount++
			}
		}
	}
	switch mon.cfg.Method {
	case DayCount:
		if mon.day >= mon.cfg.TargetDays {
			note(fmt.Sprintf("reached day %.3f of %g target days", mon.day, mon.cfg.TargetDays))
		}
	case EMAQuality:
		for mon.cfg.EMAUsers > 0 && mon.userUpdates >= mon.cfg.EMAUsers {
			mon.userUpdates -= mon.cfg.EMAUsers
			if r, ok := mon.stepEMA(); ok {
				note(r)
			}
		}
	}

	if mon.totalCount > 0 {
		metrics.MeanQuality.Set(mon.overallQuality())
	}
	return reason, done
}

// closeWindow compares the completed window's mean quality with the
// previous one. The first window only seeds the comparison.
func (mon *monitor) closeWindow() (string, bool) {
	avg := mon.windowSum / float64(mon.windowCount)
	mon.windowSum = 0
	mon.windowCount = 0

	defer func() { mon.prevAvg = avg }()
	if !mon.havePrev {
		mon.havePrev = true
		return "", false
	}

	diff := avg - mon.prevAvg
	if diff < 0 {
		diff = -diff
	}
	mon.logger.Debug().
		Float64("window_mean", avg).
		Float64("previous_mean", mon.prevAvg).
		Float64("diff", diff).
		Msg("Window closed")
	if diff <= mon.cfg.WindowThreshold {
		return fmt.Sprintf("window quality stabilized (diff %.6f <= %g)", diff, mon.cfg.WindowThreshold), true
	}
	return "", false
}

// stepEMA folds the qualities accumulated since the last step into the
// running estimate and tests the relative change. Steps with no fresh
// activity are skipped rather than decayed toward zero.
func (mon *monitor) stepEMA() (string, bool) {
	if mon.emaCount == 0 {
		return "", false
	}
	batchMean := mon.emaSum / float64(mon.emaCount)
	mon.emaSum = 0
	mon.emaCount = 0

	next := emaRho*mon.emaQuality + (1-emaRho)*batchMean
	delta := next - mon.emaQuality
	if delta < 0 {
		delta = -delta
	}
	if mon.emaQuality != 0 {
		delta /= mon.emaQuality
	}
	mon.logger.Debug().
		Float64("ema_quality", next).
		Float64("batch_mean", batchMean).
		Float64("relative_delta", delta).
		Msg("EMA quality updated")
	mon.emaQuality = next

	if delta <= mon.cfg.EMAThreshold {
		return fmt.Sprintf("EMA quality stabilized (relative delta %.6f <= %g)", delta, mon.cfg.EMAThreshold), true
	}
	return "", false
}

// report logs the interval statistics and resets the interval
// accumulators. Diversity is over the whole run, matching how the
// root-share distribution is defined.
func (mon *monitor) report() {
	mon.logger.Info().
		Float64("mean_quality", mon.intervalQuality/float64(mon.intervalCount)).
		Float64("mean_appeal", mon.intervalAppeal/float64(mon.intervalCount)).
		Float64("diversity", mon.diversity()).
		Float64("day", mon.day).
		Msg("Interval statistics")
	mon.intervalQuality = 0
	mon.intervalAppeal = 0
	mon.intervalCount = 0
}

// diversity is the Shannon entropy of the root-share distribution: how
// evenly attention spreads across original messages.
func (mon *monitor) diversity() float64 {
	if len(mon.rootCounts) == 0 {
		return 0
	}
	total := 0
	for _, c := range mon.rootCounts {
		total += c
	}
	p := make([]float64, 0, len(mon.rootCounts))
	for _, c := range mon.rootCounts {
		p = append(p, float64(c)/float64(total))
	}
	return stat.Entropy(p)
}

func (mon *monitor) overallQuality() float64 {
	if mon.totalCount == 0 {
		return 0
	}
	return mon.totalQuality / float64(mon.totalCount)
}

func (mon *monitor) overallAppeal() float64 {
	if mon.totalCount == 0 {
		return 0
	}
	return mon.totalAppeal / float64(mon.totalCount)
}
