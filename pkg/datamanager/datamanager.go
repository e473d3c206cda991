package datamanager

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	exprand "golang.org/x/exp/rand"

	"github.com/simsomlab/simsom/pkg/activity"
	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/clock"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/types"
)

const (
	// firehoseHighWater bounds the undelivered chunk buffer; on
	// overflow the oldest chunks are dropped down to firehoseKeep.
	firehoseHighWater = 2000
	firehoseKeep      = 1000
)

// Config assembles the Data Manager's collaborators and tuning.
type Config struct {
	Users []*types.User

	// Clock is the timestamp source. When Schedule is non-nil it must
	// be the same object; the manager then materializes a schedule at
	// the start of each day.
	Clock    clock.Clock
	Schedule *clock.Schedule

	Activity activity.Config

	Batchsize      int
	LurkerFraction float64
	ProbeTimeout   time.Duration
	DrainTimeout   time.Duration
	Seed           uint64
}

// Manager owns the authoritative user records, timestamps every
// produced message, and feeds the Recommender with work batches on
// request.
type Manager struct {
	ep    *bus.Endpoint
	ranks bus.RankIndex
	cfg   Config

	users map[string]*types.User
	order []string // fixed uid order aligning users with activity sampling

	outgoingActive  map[string][]*types.Message
	outgoingPassive map[string][]*types.View

	firehose []*types.FirehoseChunk

	activity *activity.Simulator
	rng      *exprand.Rand

	dayPool   []string
	dayCounts map[string]int
	newDay    bool
	daySeq    int64
	day       atomic.Int64 // published copy of the current day index

	logger zerolog.Logger
}

// New creates a Data Manager bound to its bus endpoint.
func New(ep *bus.Endpoint, ranks bus.RankIndex, cfg Config) *Manager {
	if cfg.Batchsize <= 0 {
		cfg.Batchsize = 10
	}

	m := &Manager{
		ep:              ep,
		ranks:           ranks,
		cfg:             cfg,
		users:           make(map[string]*types.User, len(cfg.Users)),
		order:           make([]string, 0, len(cfg.Users)),
		outgoingActive:  make(map[string][]*types.Message),
		outgoingPassive: make(map[string][]*types.View),
		rng:             exprand.New(exprand.NewSource(cfg.Seed)),
		newDay:          true,
		logger:          log.WithRank(string(types.RoleDataManager), int(ranks.DataManager)),
	}

	means := make([]float64, len(cfg.Users))
	for i, u := range cfg.Users {
		m.users[u.UID] = u
		m.order = append(m.order, u.UID)
		means[i] = u.MeanActionsPerDay
	}
	m.activity = activity.NewSimulator(means, cfg.Activity)

	return m
}

// Day returns the index of the day currently being dispatched.
func (m *Manager) Day() float64 {
	return float64(m.day.Load())
}

// Run executes the manager until STOP, a stall, or a protocol fault,
// then drains and joins the shutdown barrier.
func (m *Manager) Run() error {
	m.ep.Barrier()
	m.logger.Info().Int("users", len(m.order)).Msg("Data manager started")

	err := m.loop()

	m.ep.Flush()
	if n := m.ep.Drain(m.cfg.DrainTimeout); n > 0 {
		m.logger.Debug().Int("dropped", n).Msg("Drained straggler envelopes")
	}
	m.ep.Barrier()
	return err
}

func (m *Manager) loop() error {
	for {
		env, ok := m.ep.Poll(m.cfg.ProbeTimeout)
		if !ok {
			m.logger.Error().Msg("No traffic within probe window, escalating stop")
			m.ep.Broadcast(bus.Stop)
			return fmt.Errorf("data manager: %w", bus.ErrStalled)
		}
		if env.IsStop() {
			m.logger.Info().Msg("Stop received")
			return nil
		}

		switch env.From {
		case types.RoleWorker:
			batch, ok := env.Body.(*types.ProcessedBatch)
			if !ok {
				return m.protocolError(env)
			}
			m.ingest(batch)
		case types.RoleRecSys:
			if _, ok := env.Body.(*types.DataRequest); !ok {
				return m.protocolError(env)
			}
			if err := m.handleDataRequest(); err != nil {
				m.ep.Broadcast(bus.Stop)
				return err
			}
		case types.RolePolicyEval:
			update, ok := env.Body.(*types.ModerationUpdate)
			if !ok {
				return m.protocolError(env)
			}
			m.applyModeration(update)
		default:
			return m.protocolError(env)
		}
	}
}

func (m *Manager) protocolError(env bus.Envelope) error {
	m.logger.Error().
		Str("sender", string(env.From)).
		Type("body", env.Body).
		Msg("Unexpected envelope, escalating stop")
	m.ep.Broadcast(bus.Stop)
	return fmt.Errorf("data manager: unexpected envelope from %s", env.From)
}

// ingest folds a worker's processed batch into authoritative state:
// fresh messages are shuffled, timestamped, staged for their authors'
// next dispatch, and collected into one firehose chunk.
func (m *Manager) ingest(batch *types.ProcessedBatch) {
	chunk := &types.FirehoseChunk{ID: uuid.NewString()}

	for _, pack := range batch.Packs {
		msgs := pack.Activities
		m.rng.Shuffle(len(msgs), func(i, j int) {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		})
		for _, msg := range msgs {
			msg.Time = m.cfg.Clock.NextTime()
			metrics.MessagesTimestamped.Inc()
		}

		uid := pack.User.UID
		if _, known := m.users[uid]; !known {
			m.logger.Warn().Str("uid", uid).Msg("Processed batch for unknown user dropped")
			continue
		}
		chunk.Messages = append(chunk.Messages, msgs...)
		m.outgoingActive[uid] = append(m.outgoingActive[uid], msgs...)
		m.outgoingPassive[uid] = append(m.outgoingPassive[uid], pack.Passivities...)
		m.users[uid] = pack.User
	}

	if len(chunk.Messages) == 0 {
		return
	}
	m.firehose = append(m.firehose, chunk)
	metrics.FirehoseChunks.Inc()
	if len(m.firehose) > firehoseHighWater {
		dropped := len(m.firehose) - firehoseKeep
		m.firehose = append([]*types.FirehoseChunk(nil), m.firehose[dropped:]...)
		metrics.FirehoseChunksDropped.Add(float64(dropped))
		m.logger.Warn().Int("dropped", dropped).Msg("Firehose buffer over high water")
	}
}

// handleDataRequest assembles the next work batch and sends it to the
// Recommender. A new day is sampled whenever the previous day's pool
// has been fully dispatched.
func (m *Manager) handleDataRequest() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BatchBuildDuration)

	if m.newDay {
		if err := m.startDay(); err != nil {
			return err
		}
		m.newDay = false
	}

	packs := make([]*types.UserPack, 0, m.cfg.Batchsize)
	for len(packs) < m.cfg.Batchsize && len(m.dayPool) > 0 {
		uid := m.dayPool[0]
		m.dayPool = m.dayPool[1:]

		u := m.users[uid]
		if u == nil || u.Terminated {
			continue
		}

		clone := u.Clone()
		clone.PendingActions = m.dayCounts[uid]
		clone.DispatchedAt = m.cfg.Clock.Now()

		packs = append(packs, &types.UserPack{
			User:        clone,
			Activities:  m.outgoingActive[uid],
			Passivities: m.outgoingPassive[uid],
		})
		m.outgoingActive[uid] = nil
		m.outgoingPassive[uid] = nil
		metrics.UsersDispatched.Inc()
	}
	if len(m.dayPool) == 0 {
		m.newDay = true
	}

	// Every undelivered chunk rides the reply. Chunks are produced per
	// worker flush and replies per request, so handing over only the
	// head would let the buffer grow without bound under multiple
	// workers and eventually drop stamped messages.
	batch := &types.WorkBatch{Packs: packs, Firehose: m.firehose}
	m.firehose = nil

	m.ep.Send(m.ranks.RecSys, batch)
	return nil
}

// startDay samples per-user activity, forms the shuffled dispatch pool
// (active users plus a lurker share of the inactive), and hands the
// count vector to the schedule when one drives the clock.
func (m *Manager) startDay() error {
	counts := m.activity.SampleDay()

	var active, inactive []string
	dayCounts := make(map[string]int)
	for i, uid := range m.order {
		u := m.users[uid]
		if u == nil || u.Terminated {
			continue
		}
		if counts[i] > 0 {
			active = append(active, uid)
			dayCounts[uid] = counts[i]
		} else {
			inactive = append(inactive, uid)
		}
	}

	if len(active) == 0 && len(inactive) == 0 {
		m.logger.Error().Msg("Every user is terminated, escalating stop")
		return fmt.Errorf("data manager: no dispatchable users remain")
	}

	m.rng.Shuffle(len(inactive), func(i, j int) {
		inactive[i], inactive[j] = inactive[j], inactive[i]
	})
	lurkers := inactive[:int(m.cfg.LurkerFraction*float64(len(inactive)))]

	pool := append(append([]string(nil), active...), lurkers...)
	if len(pool) == 0 {
		// Nobody sampled active and no lurkers drawn. Dispatch one
		// user anyway so the request/reply cycle keeps turning.
		pool = append(pool, inactive[0])
	}
	m.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	m.dayPool = pool
	m.dayCounts = dayCounts
	day := m.daySeq
	m.daySeq++
	m.day.Store(day)

	if m.cfg.Schedule != nil {
		scheduled := make([]int, 0, len(pool))
		for _, uid := range pool {
			scheduled = append(scheduled, dayCounts[uid])
		}
		m.cfg.Schedule.StartNewDay(scheduled)
	}

	m.logger.Info().
		Int64("day", day).
		Int("active", len(active)).
		Int("lurkers", len(lurkers)).
		Msg("Day pool sampled")
	return nil
}

// applyModeration reconciles a policy outcome into the authoritative
// record. Worker-returned copies may arrive later and overwrite these
// fields; the Policy Evaluator re-issues updates until the state
// sticks, so lazy reconciliation is sufficient.
func (m *Manager) applyModeration(update *types.ModerationUpdate) {
	u, ok := m.users[update.UID]
	if !ok {
		m.logger.Warn().Str("uid", update.UID).Msg("Moderation update for unknown user dropped")
		return
	}

	u.Suspended = update.Suspended
	u.SuspensionLiftTime = update.SuspensionLiftTime
	u.Strikes = append([]float64(nil), update.Strikes...)
	if update.ClearFeed {
		u.Newsfeed = nil
	}
	if update.Terminated && !u.Terminated {
		u.Terminated = true
		m.logger.Info().Str("uid", update.UID).Msg("User terminated")
	}
}
