package sim

import (
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simsomlab/simsom/pkg/activity"
	"github.com/simsomlab/simsom/pkg/agent"
	"github.com/simsomlab/simsom/pkg/agentpool"
	"github.com/simsomlab/simsom/pkg/analyzer"
	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/clock"
	"github.com/simsomlab/simsom/pkg/config"
	"github.com/simsomlab/simsom/pkg/datamanager"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/netgen"
	"github.com/simsomlab/simsom/pkg/policy"
	"github.com/simsomlab/simsom/pkg/recsys"
	"github.com/simsomlab/simsom/pkg/runstore"
	"github.com/simsomlab/simsom/pkg/types"
	"github.com/simsomlab/simsom/pkg/worker"
)

// collectInterval is how often the metrics collector samples the
// engine gauges while a run is in flight.
const collectInterval = 5 * time.Second

// Config assembles one run.
type Config struct {
	Network   config.NetworkConfig
	Simulator config.SimulatorConfig

	// Users overrides network generation when non-nil; tests inject
	// hand-built populations this way.
	Users []*types.User

	// RunID names the run and its output directory. Empty selects a
	// fresh UUID.
	RunID string

	// Store receives the run record at launch and at completion when
	// non-nil.
	Store *runstore.Store
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	OutputDir string

	// Reason is the analyzer's convergence reason; empty when the run
	// ended by interrupt or error.
	Reason string

	Users         int
	ActivityRows  int64
	PassivityRows int64
	MeanQuality   float64
}

// runner is one participant goroutine.
type runner struct {
	name string
	run  func() error
}

// tap pairs a joined endpoint with its role so outstanding deliveries
// can be sampled per role.
type tap struct {
	role string
	ep   *bus.Endpoint
}

// Engine wires the six-role pipeline over an in-process bus and runs
// it to completion. One Engine serves one run.
type Engine struct {
	cfg       Config
	runID     string
	outputDir string

	users []*types.User

	bus     *bus.Bus
	ranks   bus.RankIndex
	taps    []tap
	runners []runner

	dm   *datamanager.Manager
	rec  *recsys.Recommender
	anlz *analyzer.Analyzer

	logger zerolog.Logger
}

// New builds a fully wired engine: configuration is validated, the
// population generated unless injected, and every participant
// constructed with its endpoint. Nothing executes until Run.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Simulator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}

	users := cfg.Users
	if users == nil {
		var err error
		users, err = netgen.Generate(cfg.Network)
		if err != nil {
			return nil, err
		}
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("empty user population")
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	e := &Engine{
		cfg:       cfg,
		runID:     runID,
		outputDir: filepath.Join(cfg.Simulator.OutputFolder, runID),
		users:     users,
		logger:    log.WithRunID(runID),
	}
	if err := e.wire(); err != nil {
		return nil, err
	}
	return e, nil
}

// RunID returns the identifier of this run.
func (e *Engine) RunID() string {
	return e.runID
}

// OutputDir returns the directory receiving the CSV streams.
func (e *Engine) OutputDir() string {
	return e.outputDir
}

// wire creates the bus and all participants. Seeds are spread so every
// stochastic component owns an independent stream.
func (e *Engine) wire() error {
	sim := e.cfg.Simulator
	e.bus = bus.New(bus.Config{Participants: sim.Participants})
	e.ranks = bus.NewRankIndex(sim.Participants)

	seed := uint64(sim.Seed)

	var (
		clk   clock.Clock
		sched *clock.Schedule
	)
	if sim.RateClock {
		clk = clock.NewRate(clock.RateConfig{
			NUsers:            len(e.users),
			ActionsPerUserDay: meanActions(e.users),
			Circadian:         sim.Circadian,
			SpikeProbability:  sim.SpikeProbability,
			Seed:              seed,
		})
	} else {
		sched = clock.NewSchedule(clock.ScheduleConfig{Seed: seed})
		clk = sched
	}

	join := func(rank bus.Rank) *bus.Endpoint {
		ep := e.bus.Join(rank, e.ranks.RoleOf(rank))
		e.taps = append(e.taps, tap{role: string(ep.Role()), ep: ep})
		return ep
	}

	anlz, err := analyzer.New(join(e.ranks.Analyzer), e.ranks, analyzer.Config{
		OutputDir:       e.outputDir,
		SaveActive:      sim.SaveActiveInteractions,
		SavePassive:     sim.SavePassiveInteractions,
		Method:          analyzer.Method(sim.Convergence()),
		TargetDays:      sim.TargetDays,
		WindowSize:      sim.SlidingWindowSize,
		WindowThreshold: sim.SlidingWindowThreshold,
		EMAUsers:        len(e.users),
		EMAThreshold:    sim.EMAQualityConvergence,
		Verbose:         sim.Verbose,
		PrintInterval:   sim.PrintInterval,
		ProbeTimeout:    sim.ProbeTimeout(),
		DrainTimeout:    sim.DrainTimeout(),
	})
	if err != nil {
		return err
	}
	e.anlz = anlz

	e.dm = datamanager.New(join(e.ranks.DataManager), e.ranks, datamanager.Config{
		Users:    e.users,
		Clock:    clk,
		Schedule: sched,
		Activity: activity.Config{
			Markov:       sim.MarkovActivity,
			StayActive:   sim.MarkovStayActive,
			BecomeActive: sim.MarkovBecomeActive,
			Seed:         seed + 1,
		},
		Batchsize:      sim.DataManagerBatchsize,
		LurkerFraction: sim.LurkerFraction,
		ProbeTimeout:   sim.ProbeTimeout(),
		DrainTimeout:   sim.DrainTimeout(),
		Seed:           seed + 2,
	})

	e.rec = recsys.New(join(e.ranks.RecSys), e.ranks, recsys.Config{
		FilterSuspended: sim.FilterSuspended,
		ProbeTimeout:    sim.ProbeTimeout(),
		DrainTimeout:    sim.DrainTimeout(),
	})

	pool := agentpool.New(join(e.ranks.AgentPool), e.ranks, agentpool.Config{
		ProbeTimeout: sim.ProbeTimeout(),
		DrainTimeout: sim.DrainTimeout(),
		Seed:         seed + 3,
	})

	eval := policy.New(join(e.ranks.PolicyEval), e.ranks, policy.Config{
		StrikeWindow:   sim.StrikeWindow,
		StrikeLimit:    sim.StrikeLimit,
		SuspensionUnit: sim.SuspensionUnit,
		ProbeTimeout:   sim.ProbeTimeout(),
		DrainTimeout:   sim.DrainTimeout(),
	})

	e.runners = []runner{
		{string(types.RoleAnalyzer), e.anlz.Run},
		{string(types.RoleDataManager), e.dm.Run},
		{string(types.RoleRecSys), e.rec.Run},
		{string(types.RoleAgentPool), pool.Run},
		{string(types.RolePolicyEval), eval.Run},
	}
	for i, rank := range e.ranks.Workers {
		w := worker.New(join(rank), e.ranks, worker.Config{
			Agent: agent.Config{
				Mu:                  sim.Mu,
				AppealExponent:      sim.AppealExponent,
				BadQualityThreshold: sim.BadQualityThreshold,
			},
			Batchsize:    sim.WorkerBatchsize,
			ProbeTimeout: sim.ProbeTimeout(),
			DrainTimeout: sim.DrainTimeout(),
			Seed:         seed + 4 + uint64(i),
		})
		e.runners = append(e.runners, runner{fmt.Sprintf("%s-%d", types.RoleWorker, rank), w.Run})
	}
	return nil
}

// Run executes the pipeline to completion and reports the outcome. It
// blocks until every participant has passed the shutdown barrier; the
// returned error is the first participant failure, nil on a clean
// convergence or interrupt.
func (e *Engine) Run() (*Result, error) {
	sim := e.cfg.Simulator
	start := time.Now().UTC()

	rec := &runstore.RunRecord{
		ID:           e.runID,
		StartedAt:    start,
		Status:       runstore.StatusRunning,
		OutputDir:    e.outputDir,
		Participants: sim.Participants,
		Users:        len(e.users),
		Network:      &e.cfg.Network,
		Simulator:    &sim,
	}
	e.saveRecord(rec)

	var (
		collector *metrics.Collector
		srv       *http.Server
	)
	if sim.MetricsAddr != "" {
		collector = metrics.NewCollector(e, collectInterval)
		collector.Start()
		var err error
		srv, err = e.serveMetrics(sim.MetricsAddr)
		if err != nil {
			collector.Stop()
			return nil, err
		}
	}

	e.logger.Info().
		Int("participants", sim.Participants).
		Int("workers", sim.Workers()).
		Int("users", len(e.users)).
		Str("convergence", string(sim.Convergence())).
		Str("output_dir", e.outputDir).
		Msg("Simulation starting")

	type outcome struct {
		name string
		err  error
	}
	done := make(chan outcome, len(e.runners))
	for _, r := range e.runners {
		metrics.RegisterParticipant(r.name, true, "running")
		go func(r runner) {
			err := r.run()
			if err != nil {
				metrics.UpdateParticipant(r.name, false, err.Error())
			} else {
				metrics.UpdateParticipant(r.name, false, "finished")
			}
			done <- outcome{r.name, err}
		}(r)
	}

	var firstErr error
	for range e.runners {
		out := <-done
		if out.err != nil {
			e.logger.Error().Err(out.err).Str("participant", out.name).Msg("Participant failed")
			if firstErr == nil {
				firstErr = out.err
			}
		}
	}

	e.bus.Close()
	if collector != nil {
		collector.Stop()
	}
	if srv != nil {
		srv.Close()
	}

	res := &Result{
		RunID:         e.runID,
		OutputDir:     e.outputDir,
		Reason:        e.anlz.Reason(),
		Users:         len(e.users),
		ActivityRows:  e.anlz.ActivityRows(),
		PassivityRows: e.anlz.PassivityRows(),
		MeanQuality:   e.anlz.MeanQuality(),
	}

	rec.FinishedAt = time.Now().UTC()
	rec.Reason = res.Reason
	rec.ActivityRows = res.ActivityRows
	rec.PassivityRows = res.PassivityRows
	rec.MeanQuality = res.MeanQuality
	switch {
	case firstErr != nil:
		rec.Status = runstore.StatusFailed
		rec.Error = firstErr.Error()
	case res.Reason != "":
		rec.Status = runstore.StatusConverged
	default:
		rec.Status = runstore.StatusStopped
	}
	e.saveRecord(rec)

	e.logger.Info().
		Str("status", string(rec.Status)).
		Str("reason", res.Reason).
		Int64("activities", res.ActivityRows).
		Int64("passivities", res.PassivityRows).
		Dur("elapsed", time.Since(start)).
		Msg("Simulation finished")

	return res, firstErr
}

// Interrupt injects a stop signal into every mailbox; participants
// wind down through the normal shutdown path. Safe to call from a
// signal handler while Run is in flight.
func (e *Engine) Interrupt() {
	e.bus.Interrupt()
}

// Outstanding implements metrics.Source.
func (e *Engine) Outstanding() map[string]int {
	out := make(map[string]int, len(e.taps))
	for _, t := range e.taps {
		out[t.role] += t.ep.Outstanding()
	}
	return out
}

// Day implements metrics.Source.
func (e *Engine) Day() float64 {
	return e.dm.Day()
}

// InventorySize implements metrics.Source.
func (e *Engine) InventorySize() int {
	return e.rec.InventorySize()
}

func (e *Engine) saveRecord(rec *runstore.RunRecord) {
	if e.cfg.Store == nil {
		return
	}
	if err := e.cfg.Store.SaveRun(rec); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to save run record")
	}
}

// serveMetrics exposes the prometheus and health endpoints. Listening
// happens here so a bad address fails the run instead of a goroutine.
func (e *Engine) serveMetrics(addr string) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			e.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	e.logger.Info().Str("addr", lis.Addr().String()).Msg("Metrics endpoint listening")
	return srv, nil
}

func meanActions(users []*types.User) float64 {
	sum := 0.0
	for _, u := range users {
		sum += u.MeanActionsPerDay
	}
	return sum / float64(len(users))
}
