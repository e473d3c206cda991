package worker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/simsomlab/simsom/pkg/agent"
	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

// Config tunes a worker.
type Config struct {
	Agent agent.Config

	// Batchsize is how many processed users accumulate before the
	// worker flushes downstream. The batch also flushes whenever the
	// mailbox runs dry, so a lull never strands completed work.
	Batchsize int

	ProbeTimeout time.Duration
	DrainTimeout time.Duration
	Seed         uint64
}

// Worker is an agent-handler participant: it executes user turns
// dispatched by the Agent Pool Manager and returns the results in
// batches to the Data Manager, with a parallel copy of each user to
// the Policy Evaluator.
type Worker struct {
	ep    *bus.Endpoint
	ranks bus.RankIndex
	cfg   Config

	model *agent.Model
	batch []*types.UserPack

	logger zerolog.Logger
}

// New creates a worker bound to its bus endpoint. Each worker owns an
// independent behavior model so the pool shares no random state.
func New(ep *bus.Endpoint, ranks bus.RankIndex, cfg Config) *Worker {
	if cfg.Batchsize <= 0 {
		cfg.Batchsize = 32
	}
	return &Worker{
		ep:     ep,
		ranks:  ranks,
		cfg:    cfg,
		model:  agent.NewModel(cfg.Agent, cfg.Seed),
		logger: log.WithRank(string(types.RoleWorker), int(ep.Rank())),
	}
}

// Run executes the worker until STOP, a stall, or a protocol fault,
// then drains and joins the shutdown barrier. Any batched work is
// flushed before the barrier.
func (w *Worker) Run() error {
	w.ep.Barrier()
	w.logger.Info().Msg("Worker started")

	err := w.loop()

	w.flush()
	w.ep.Flush()
	if n := w.ep.Drain(w.cfg.DrainTimeout); n > 0 {
		w.logger.Debug().Int("dropped", n).Msg("Drained straggler envelopes")
	}
	w.ep.Barrier()
	return err
}

// loop batches while busy and flushes when idle: users are processed
// as fast as the mailbox supplies them, and the moment it runs dry the
// accumulated batch goes out before the blocking probe.
func (w *Worker) loop() error {
	for {
		env, ok := w.ep.TryPoll()
		if !ok {
			w.flush()
			env, ok = w.ep.Poll(w.cfg.ProbeTimeout)
			if !ok {
				w.logger.Error().Msg("No traffic within probe window, escalating stop")
				w.ep.Broadcast(bus.Stop)
				return fmt.Errorf("worker %d: %w", w.ep.Rank(), bus.ErrStalled)
			}
		}
		if env.IsStop() {
			w.logger.Info().Msg("Stop received")
			return nil
		}

		if env.From != types.RoleAgentPool {
			return w.protocolError(env)
		}
		u, ok := env.Body.(*types.User)
		if !ok {
			return w.protocolError(env)
		}

		w.process(u)
		if len(w.batch) >= w.cfg.Batchsize {
			w.flush()
		}
	}
}

func (w *Worker) protocolError(env bus.Envelope) error {
	w.logger.Error().
		Str("sender", string(env.From)).
		Type("body", env.Body).
		Msg("Unexpected envelope, escalating stop")
	w.ep.Broadcast(bus.Stop)
	return fmt.Errorf("worker %d: unexpected envelope from %s", w.ep.Rank(), env.From)
}

// process runs one user turn and stages the result. Suspended users
// still complete the round trip, so the Policy Evaluator gets a chance
// to lift them, but their action budget is forfeited.
func (w *Worker) process(u *types.User) {
	var msgs []*types.Message
	var views []*types.View

	if u.Suspended {
		u.BadMessagePosting = false
		u.PendingActions = 0
	} else {
		msgs, views = w.model.MakeActions(u)
	}

	for _, m := range msgs {
		if m.IsReshare() {
			metrics.MessagesCreated.WithLabelValues("reshare").Inc()
		} else {
			metrics.MessagesCreated.WithLabelValues("post").Inc()
		}
	}
	metrics.ViewsRecorded.Add(float64(len(views)))

	w.batch = append(w.batch, &types.UserPack{
		User:        u,
		Activities:  msgs,
		Passivities: views,
	})
}

// flush sends the accumulated batch to the Data Manager and a clone of
// every processed user to the Policy Evaluator.
func (w *Worker) flush() {
	if len(w.batch) == 0 {
		return
	}
	packs := w.batch
	w.batch = nil

	// Clone before handing the packs back: the Data Manager owns the
	// users again once the batch is sent and may mutate them while
	// applying a queued moderation update.
	users := make([]*types.User, len(packs))
	for i, pack := range packs {
		users[i] = pack.User.Clone()
	}

	w.ep.Send(w.ranks.DataManager, &types.ProcessedBatch{Packs: packs})
	w.ep.Send(w.ranks.PolicyEval, users)
}
