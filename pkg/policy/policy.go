package policy

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

// Config tunes the evaluator. Times are in simulated day units.
type Config struct {
	// StrikeWindow is how long a strike stays on the record before it
	// expires.
	StrikeWindow float64

	// StrikeLimit is the strike count that terminates the account.
	StrikeLimit int

	// SuspensionUnit scales the suspension length: a user with n
	// strikes sits out SuspensionUnit*n day units.
	SuspensionUnit float64

	ProbeTimeout time.Duration
	DrainTimeout time.Duration
}

// record is the evaluator's own view of one user's standing. The
// authoritative copy lives at the Data Manager; the ledger exists so
// decisions survive the lag between issuing an update and seeing it
// reflected in the next worker copy.
type record struct {
	strikes    []float64
	suspended  bool
	liftTime   float64
	terminated bool
}

// Evaluator is the moderation participant: it watches the user copies
// the workers emit, keeps a strike ledger per user, and reconciles
// outcomes into the Data Manager through side-channel updates. It
// never creates messages and never sits on the main dataflow path.
type Evaluator struct {
	ep    *bus.Endpoint
	ranks bus.RankIndex
	cfg   Config

	ledger map[string]*record

	logger zerolog.Logger
}

// New creates an Evaluator bound to its bus endpoint.
func New(ep *bus.Endpoint, ranks bus.RankIndex, cfg Config) *Evaluator {
	if cfg.StrikeWindow <= 0 {
		cfg.StrikeWindow = 0.1
	}
	if cfg.StrikeLimit <= 0 {
		cfg.StrikeLimit = 3
	}
	if cfg.SuspensionUnit <= 0 {
		cfg.SuspensionUnit = 0.0002
	}
	return &Evaluator{
		ep:     ep,
		ranks:  ranks,
		cfg:    cfg,
		ledger: make(map[string]*record),
		logger: log.WithRank(string(types.RolePolicyEval), int(ranks.PolicyEval)),
	}
}

// Run executes the evaluator until STOP, a stall, or a protocol fault,
// then drains and joins the shutdown barrier.
func (e *Evaluator) Run() error {
	e.ep.Barrier()
	e.logger.Info().
		Float64("strike_window", e.cfg.StrikeWindow).
		Int("strike_limit", e.cfg.StrikeLimit).
		Msg("Policy evaluator started")

	err := e.loop()

	e.ep.Flush()
	if n := e.ep.Drain(e.cfg.DrainTimeout); n > 0 {
		e.logger.Debug().Int("dropped", n).Msg("Drained straggler envelopes")
	}
	e.ep.Barrier()
	return err
}

func (e *Evaluator) loop() error {
	for {
		env, ok := e.ep.Poll(e.cfg.ProbeTimeout)
		if !ok {
			e.logger.Error().Msg("No traffic within probe window, escalating stop")
			e.ep.Broadcast(bus.Stop)
			return fmt.Errorf("policy evaluator: %w", bus.ErrStalled)
		}
		if env.IsStop() {
			e.logger.Info().Msg("Stop received")
			return nil
		}

		if env.From != types.RoleWorker {
			return e.protocolError(env)
		}
		users, ok := env.Body.([]*types.User)
		if !ok {
			return e.protocolError(env)
		}

		for _, u := range users {
			e.evaluate(u)
		}
	}
}

func (e *Evaluator) protocolError(env bus.Envelope) error {
	e.logger.Error().
		Str("sender", string(env.From)).
		Type("body", env.Body).
		Msg("Unexpected envelope, escalating stop")
	e.ep.Broadcast(bus.Stop)
	return fmt.Errorf("policy evaluator: unexpected envelope from %s", env.From)
}

// evaluate applies the moderation rules to one returned user copy. The
// copy's dispatch timestamp is the evaluation's notion of now, so the
// evaluator needs no clock of its own.
func (e *Evaluator) evaluate(u *types.User) {
	rec, ok := e.ledger[u.UID]
	if !ok {
		rec = &record{
			strikes:    append([]float64(nil), u.Strikes...),
			suspended:  u.Suspended,
			liftTime:   u.SuspensionLiftTime,
			terminated: u.Terminated,
		}
		e.ledger[u.UID] = rec
	}

	if rec.terminated {
		// A terminated user still flowing through the pipeline means
		// the verdict has not reached the Data Manager yet.
		if !u.Terminated {
			e.send(u.UID, rec, false)
		}
		return
	}

	now := u.DispatchedAt

	kept := rec.strikes[:0]
	for _, s := range rec.strikes {
		if now-s <= e.cfg.StrikeWindow {
			kept = append(kept, s)
		}
	}
	rec.strikes = kept

	if rec.suspended && now >= rec.liftTime {
		rec.suspended = false
		rec.liftTime = 0
		e.logger.Info().Str("uid", u.UID).Float64("now", now).Msg("Suspension lifted")
	}

	clearFeed := false
	if u.BadMessagePosting {
		rec.strikes = append(rec.strikes, now)
		metrics.StrikesTotal.Inc()

		if len(rec.strikes) >= e.cfg.StrikeLimit {
			rec.terminated = true
			rec.suspended = false
			rec.liftTime = 0
			metrics.TerminationsTotal.Inc()
			e.logger.Info().
				Str("uid", u.UID).
				Int("strikes", len(rec.strikes)).
				Msg("Strike limit reached, terminating user")
		} else {
			rec.suspended = true
			rec.liftTime = now + e.cfg.SuspensionUnit*float64(len(rec.strikes))
			metrics.SuspensionsTotal.Inc()
			e.logger.Info().
				Str("uid", u.UID).
				Int("strikes", len(rec.strikes)).
				Float64("lift_time", rec.liftTime).
				Msg("User suspended")
		}
	}

	// Empty the newsfeed whenever the update moves the authoritative
	// record into suspension, including re-issues that never stuck.
	if rec.suspended && !u.Suspended {
		clearFeed = true
	}

	if e.diverged(u, rec) {
		e.send(u.UID, rec, clearFeed)
	}
}

// diverged reports whether the copy disagrees with the ledger, which
// covers both fresh verdicts and earlier updates the Data Manager has
// not folded in yet.
func (e *Evaluator) diverged(u *types.User, rec *record) bool {
	if u.Suspended != rec.suspended || u.Terminated != rec.terminated {
		return true
	}
	if u.SuspensionLiftTime != rec.liftTime {
		return true
	}
	if len(u.Strikes) != len(rec.strikes) {
		return true
	}
	for i, s := range rec.strikes {
		if u.Strikes[i] != s {
			return true
		}
	}
	return false
}

func (e *Evaluator) send(uid string, rec *record, clearFeed bool) {
	e.ep.Send(e.ranks.DataManager, &types.ModerationUpdate{
		UID:                uid,
		Suspended:          rec.suspended,
		SuspensionLiftTime: rec.liftTime,
		Strikes:            append([]float64(nil), rec.strikes...),
		Terminated:         rec.terminated,
		ClearFeed:          clearFeed,
	})
}
