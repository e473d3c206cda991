package agentpool

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	exprand "golang.org/x/exp/rand"

	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/types"
)

// Config tunes the dispatcher.
type Config struct {
	ProbeTimeout time.Duration
	DrainTimeout time.Duration
	Seed         uint64
}

// Dispatcher keeps the pipeline primed: it requests user batches from
// the Recommender, one outstanding request at a time, and spreads the
// returned users across the worker ranks uniformly at random.
type Dispatcher struct {
	ep    *bus.Endpoint
	ranks bus.RankIndex
	cfg   Config
	rng   *exprand.Rand

	logger zerolog.Logger
}

// New creates a Dispatcher bound to its bus endpoint.
func New(ep *bus.Endpoint, ranks bus.RankIndex, cfg Config) *Dispatcher {
	return &Dispatcher{
		ep:     ep,
		ranks:  ranks,
		cfg:    cfg,
		rng:    exprand.New(exprand.NewSource(cfg.Seed)),
		logger: log.WithRank(string(types.RoleAgentPool), int(ranks.AgentPool)),
	}
}

// Run executes the dispatcher until STOP, a stall, or a protocol
// fault, then drains and joins the shutdown barrier.
func (d *Dispatcher) Run() error {
	d.ep.Barrier()
	d.logger.Info().Int("workers", len(d.ranks.Workers)).Msg("Agent pool manager started")

	err := d.loop()

	d.ep.Flush()
	if n := d.ep.Drain(d.cfg.DrainTimeout); n > 0 {
		d.logger.Debug().Int("dropped", n).Msg("Drained straggler envelopes")
	}
	d.ep.Barrier()
	return err
}

func (d *Dispatcher) loop() error {
	outstanding := false
	for {
		if !outstanding {
			d.ep.Send(d.ranks.RecSys, &types.DataRequest{})
			outstanding = true
		}

		env, ok := d.ep.Poll(d.cfg.ProbeTimeout)
		if !ok {
			d.logger.Error().Msg("No traffic within probe window, escalating stop")
			d.ep.Broadcast(bus.Stop)
			return fmt.Errorf("agent pool manager: %w", bus.ErrStalled)
		}
		if env.IsStop() {
			d.logger.Info().Msg("Stop received")
			return nil
		}

		if env.From != types.RoleRecSys {
			return d.protocolError(env)
		}
		users, ok := env.Body.([]*types.User)
		if !ok {
			return d.protocolError(env)
		}

		d.dispatch(users)
		outstanding = false
	}
}

func (d *Dispatcher) protocolError(env bus.Envelope) error {
	d.logger.Error().
		Str("sender", string(env.From)).
		Type("body", env.Body).
		Msg("Unexpected envelope, escalating stop")
	d.ep.Broadcast(bus.Stop)
	return fmt.Errorf("agent pool manager: unexpected envelope from %s", env.From)
}

// dispatch assigns each user to a uniformly chosen worker.
func (d *Dispatcher) dispatch(users []*types.User) {
	for _, u := range users {
		to := d.ranks.Workers[d.rng.Intn(len(d.ranks.Workers))]
		d.ep.Send(to, u)
	}
}
