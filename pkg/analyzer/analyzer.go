package analyzer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

// Method selects the convergence criterion.
type Method string

const (
	DayCount      Method = "day_count"
	SlidingWindow Method = "sliding_window"
	EMAQuality    Method = "ema_quality"
	None          Method = "none"
)

// Config tunes the analyzer.
type Config struct {
	// OutputDir receives activities.csv and passivities.csv.
	OutputDir   string
	SaveActive  bool
	SavePassive bool

	// Convergence criterion and its parameters.
	Method          Method
	TargetDays      float64
	WindowSize      int
	WindowThreshold float64
	EMAUsers        int
	EMAThreshold    float64

	// Verbose interval reporting, clocked in activity rows.
	Verbose       bool
	PrintInterval int

	ProbeTimeout time.Duration
	DrainTimeout time.Duration
}

// Analyzer is the persistence and convergence participant: it appends
// every activity and passivity the Recommender forwards to CSV, feeds
// the convergence monitor, and broadcasts STOP when the run's goal is
// reached.
type Analyzer struct {
	ep    *bus.Endpoint
	ranks bus.RankIndex
	cfg   Config

	activities  *csvStream
	passivities *csvStream
	monitor     *monitor

	reason string

	logger zerolog.Logger
}

// New creates an Analyzer and opens its output streams. The files are
// created eagerly so a bad output directory fails the run before the
// boot barrier.
func New(ep *bus.Endpoint, ranks bus.RankIndex, cfg Config) (*Analyzer, error) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.Method == "" {
		cfg.Method = None
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	a := &Analyzer{
		ep:      ep,
		ranks:   ranks,
		cfg:     cfg,
		monitor: newMonitor(cfg),
		logger:  log.WithRank(string(types.RoleAnalyzer), int(ranks.Analyzer)),
	}

	var err error
	if cfg.SaveActive {
		a.activities, err = newCSVStream(
			filepath.Join(cfg.OutputDir, "activities.csv"),
			[]string{"message_id", "user_id", "quality", "appeal", "reshared_id", "reshared_user_id", "reshared_original_id", "clock_time"},
			"activities",
		)
		if err != nil {
			return nil, err
		}
	}
	if cfg.SavePassive {
		a.passivities, err = newCSVStream(
			filepath.Join(cfg.OutputDir, "passivities.csv"),
			[]string{"action_id", "user_id", "message_id", "message_user_id"},
			"passivities",
		)
		if err != nil {
			a.closeStreams()
			return nil, err
		}
	}
	return a, nil
}

// Reason reports why the analyzer broadcast STOP, empty when it never
// did.
func (a *Analyzer) Reason() string {
	return a.reason
}

// ActivityRows returns the number of activity rows written.
func (a *Analyzer) ActivityRows() int64 {
	if a.activities == nil {
		return 0
	}
	return a.activities.rows
}

// PassivityRows returns the number of passivity rows written.
func (a *Analyzer) PassivityRows() int64 {
	if a.passivities == nil {
		return 0
	}
	return a.passivities.rows
}

// MeanQuality returns the mean quality over every activity observed.
func (a *Analyzer) MeanQuality() float64 {
	return a.monitor.overallQuality()
}

// Run executes the analyzer until convergence, STOP, a stall, or a
// fault, then flushes the CSV streams, drains and joins the shutdown
// barrier. The barrier is what guarantees the files are complete when
// the run exits.
func (a *Analyzer) Run() error {
	a.ep.Barrier()
	a.logger.Info().
		Str("method", string(a.cfg.Method)).
		Str("output", a.cfg.OutputDir).
		Msg("Analyzer started")

	err := a.loop()

	if cerr := a.closeStreams(); cerr != nil && err == nil {
		err = cerr
	}
	a.summary()
	a.ep.Flush()
	if n := a.ep.Drain(a.cfg.DrainTimeout); n > 0 {
		a.logger.Debug().Int("dropped", n).Msg("Drained straggler envelopes")
	}
	a.ep.Barrier()
	return err
}

func (a *Analyzer) loop() error {
	for {
		env, ok := a.ep.Poll(a.cfg.ProbeTimeout)
		if !ok {
			a.logger.Error().Msg("No traffic within probe window, escalating stop")
			a.ep.Broadcast(bus.Stop)
			return fmt.Errorf("analyzer: %w", bus.ErrStalled)
		}
		if env.IsStop() {
			a.logger.Info().Msg("Stop received")
			return nil
		}

		if env.From != types.RoleRecSys {
			return a.protocolError(env)
		}
		pack, ok := env.Body.(*types.AnalyzerPack)
		if !ok {
			return a.protocolError(env)
		}

		if err := a.persist(pack); err != nil {
			a.logger.Error().Err(err).Msg("Write failed, escalating stop")
			a.ep.Broadcast(bus.Stop)
			return err
		}

		if reason, done := a.monitor.observe(pack); done {
			a.reason = reason
			a.logger.Info().Str("reason", reason).Msg("Goal reached, terminating simulation")
			a.ep.Broadcast(bus.Stop)
			return nil
		}
	}
}

func (a *Analyzer) protocolError(env bus.Envelope) error {
	a.logger.Error().
		Str("sender", string(env.From)).
		Type("body", env.Body).
		Msg("Unexpected envelope, escalating stop")
	a.ep.Broadcast(bus.Stop)
	return fmt.Errorf("analyzer: unexpected envelope from %s", env.From)
}

// persist appends the pack's rows and flushes, so the files on disk
// trail the pipeline by at most one pack. Activity rows come from the
// firehose run: chunks arrive in stamp order and messages within a
// chunk are stamped sequentially, which keeps activities.csv monotone
// in clock time end to end.
func (a *Analyzer) persist(pack *types.AnalyzerPack) error {
	if a.activities != nil {
		for _, chunk := range pack.Firehose {
			for _, m := range chunk.Messages {
				if err := a.activities.Append(activityRow(m)); err != nil {
					return fmt.Errorf("activities: %w", err)
				}
			}
		}
		if err := a.activities.Flush(); err != nil {
			return fmt.Errorf("activities: %w", err)
		}
	}
	if a.passivities != nil {
		for _, v := range pack.Passivities {
			if err := a.passivities.Append(passivityRow(v)); err != nil {
				return fmt.Errorf("passivities: %w", err)
			}
		}
		if err := a.passivities.Flush(); err != nil {
			return fmt.Errorf("passivities: %w", err)
		}
	}
	return nil
}

func (a *Analyzer) closeStreams() error {
	var err error
	if a.activities != nil {
		if cerr := a.activities.Close(); cerr != nil {
			err = cerr
		}
	}
	if a.passivities != nil {
		if cerr := a.passivities.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// summary logs the whole-run figures the way the interval reports do.
func (a *Analyzer) summary() {
	if !a.cfg.Verbose || a.monitor.totalCount == 0 {
		return
	}
	a.logger.Info().
		Float64("mean_quality", a.monitor.overallQuality()).
		Float64("mean_appeal", a.monitor.overallAppeal()).
		Float64("diversity", a.monitor.diversity()).
		Int("activities", a.monitor.totalCount).
		Msg("Overall run statistics")
}

func activityRow(m *types.Message) []string {
	return []string{
		m.MID,
		m.UID,
		formatFloat(m.Quality),
		formatFloat(m.Appeal),
		m.ResharedID,
		m.ResharedUserID,
		m.ResharedOriginalID,
		formatFloat(m.Time),
	}
}

func passivityRow(v *types.View) []string {
	return []string{v.VID, v.UID, v.ParentMID, v.ParentUID}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// csvStream is an append-only CSV file owned by the analyzer.
type csvStream struct {
	f      *os.File
	w      *csv.Writer
	stream string
	rows   int64
	closed bool
}

func newCSVStream(path string, header []string, stream string) (*csvStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header of %s: %w", path, err)
	}
	return &csvStream{f: f, w: w, stream: stream}, nil
}

func (s *csvStream) Append(record []string) error {
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.rows++
	metrics.CSVRowsWritten.WithLabelValues(s.stream).Inc()
	return nil
}

func (s *csvStream) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

func (s *csvStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
