package datamanager

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simsomlab/simsom/pkg/bus"
	"github.com/simsomlab/simsom/pkg/clock"
	"github.com/simsomlab/simsom/pkg/types"
)

type harness struct {
	bus   *bus.Bus
	ranks bus.RankIndex

	analyzer *bus.Endpoint
	recsys   *bus.Endpoint
	pool     *bus.Endpoint
	policy   *bus.Endpoint
	worker   *bus.Endpoint
}

func newHarness() *harness {
	b := bus.New(bus.Config{Participants: 6})
	ranks := bus.NewRankIndex(6)
	return &harness{
		bus:      b,
		ranks:    ranks,
		analyzer: b.Join(ranks.Analyzer, types.RoleAnalyzer),
		recsys:   b.Join(ranks.RecSys, types.RoleRecSys),
		pool:     b.Join(ranks.AgentPool, types.RoleAgentPool),
		policy:   b.Join(ranks.PolicyEval, types.RolePolicyEval),
		worker:   b.Join(ranks.Workers[0], types.RoleWorker),
	}
}

// others returns every harness endpoint except the Data Manager's.
func (h *harness) others() []*bus.Endpoint {
	return []*bus.Endpoint{h.analyzer, h.recsys, h.pool, h.policy, h.worker}
}

// enterBarrier joins the bus barrier on behalf of every endpoint the
// test controls.
func (h *harness) enterBarrier() *sync.WaitGroup {
	var wg sync.WaitGroup
	for _, ep := range h.others() {
		wg.Add(1)
		go func(ep *bus.Endpoint) {
			defer wg.Done()
			ep.Barrier()
		}(ep)
	}
	return &wg
}

func testUsers(n int, mean float64) []*types.User {
	users := make([]*types.User, n)
	for i := range users {
		users[i] = &types.User{
			UID:               string(rune('a' + i%26)) + string(rune('0'+i/26)),
			MeanActionsPerDay: mean,
			CutOff:            15,
		}
	}
	return users
}

func newManager(h *harness, users []*types.User, cfg Config) *Manager {
	cfg.Users = users
	if cfg.Clock == nil {
		cfg.Clock = clock.NewRate(clock.RateConfig{
			NUsers:            len(users),
			ActionsPerUserDay: 5,
			Seed:              1,
		})
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = time.Second
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = 20 * time.Millisecond
	}
	ep := h.bus.Join(h.ranks.DataManager, types.RoleDataManager)
	return New(ep, h.ranks, cfg)
}

func packFor(u *types.User, msgs int) *types.UserPack {
	clone := u.Clone()
	clone.PostCount += msgs
	pack := &types.UserPack{User: clone}
	for i := 0; i < msgs; i++ {
		pack.Activities = append(pack.Activities, &types.Message{
			MID: clone.UID + "-m" + string(rune('0'+i)),
			UID: clone.UID,
		})
		pack.Passivities = append(pack.Passivities, &types.View{
			VID: clone.UID + "-v" + string(rune('0'+i)),
			UID: clone.UID,
		})
	}
	return pack
}

func TestIngestTimestampsAndStages(t *testing.T) {
	h := newHarness()
	users := testUsers(1, 5)
	m := newManager(h, users, Config{Batchsize: 10})

	pack := packFor(users[0], 3)
	m.ingest(&types.ProcessedBatch{Packs: []*types.UserPack{pack}})

	require.Len(t, m.firehose, 1)
	chunk := m.firehose[0]
	require.Len(t, chunk.Messages, 3)
	assert.NotEmpty(t, chunk.ID)

	last := -1.0
	for _, msg := range chunk.Messages {
		assert.GreaterOrEqual(t, msg.Time, last)
		last = msg.Time
	}

	uid := users[0].UID
	assert.Len(t, m.outgoingActive[uid], 3)
	assert.Len(t, m.outgoingPassive[uid], 3)
	assert.Same(t, pack.User, m.users[uid], "authoritative record replaced by the returned copy")
}

func TestIngestUnknownUserDropped(t *testing.T) {
	h := newHarness()
	users := testUsers(1, 5)
	m := newManager(h, users, Config{})

	ghost := &types.User{UID: "ghost"}
	m.ingest(&types.ProcessedBatch{Packs: []*types.UserPack{packFor(ghost, 2)}})

	assert.Empty(t, m.firehose, "chunk with no surviving messages is not buffered")
	assert.NotContains(t, m.users, "ghost")
	assert.Empty(t, m.outgoingActive["ghost"])
}

func recvWorkBatch(t *testing.T, h *harness) *types.WorkBatch {
	t.Helper()
	env, ok := h.recsys.Poll(time.Second)
	require.True(t, ok, "no work batch arrived")
	require.Equal(t, types.RoleDataManager, env.From)
	batch, ok := env.Body.(*types.WorkBatch)
	require.True(t, ok)
	return batch
}

func TestDataRequestBatchesAcrossDay(t *testing.T) {
	h := newHarness()
	users := testUsers(25, 30) // Poisson(30) makes everyone active
	m := newManager(h, users, Config{Batchsize: 10, Seed: 7})

	var sizes []int
	for i := 0; i < 3; i++ {
		require.NoError(t, m.handleDataRequest())
		batch := recvWorkBatch(t, h)
		sizes = append(sizes, len(batch.Packs))
		for _, pack := range batch.Packs {
			assert.Positive(t, pack.User.PendingActions)
			assert.NotSame(t, m.users[pack.User.UID], pack.User, "dispatch must clone")
		}
	}
	assert.Equal(t, []int{10, 10, 5}, sizes)
	assert.Equal(t, float64(0), m.Day())

	// Pool exhausted: the next request starts day 1.
	require.NoError(t, m.handleDataRequest())
	recvWorkBatch(t, h)
	assert.Equal(t, float64(1), m.Day())
}

func TestDataRequestClearsStaging(t *testing.T) {
	h := newHarness()
	users := testUsers(1, 30)
	m := newManager(h, users, Config{Batchsize: 5})

	uid := users[0].UID
	m.ingest(&types.ProcessedBatch{Packs: []*types.UserPack{packFor(users[0], 2)}})

	require.NoError(t, m.handleDataRequest())
	batch := recvWorkBatch(t, h)
	require.Len(t, batch.Packs, 1)
	assert.Len(t, batch.Packs[0].Activities, 2)
	assert.Len(t, batch.Packs[0].Passivities, 2)
	assert.Empty(t, m.outgoingActive[uid], "staging cleared on dispatch")
	assert.Empty(t, m.outgoingPassive[uid])
}

func TestDataRequestDrainsFirehose(t *testing.T) {
	h := newHarness()
	users := testUsers(1, 30)
	m := newManager(h, users, Config{Batchsize: 5})

	m.ingest(&types.ProcessedBatch{Packs: []*types.UserPack{packFor(users[0], 1)}})
	m.ingest(&types.ProcessedBatch{Packs: []*types.UserPack{packFor(users[0], 1)}})
	first, second := m.firehose[0], m.firehose[1]

	require.NoError(t, m.handleDataRequest())
	batch := recvWorkBatch(t, h)
	require.Len(t, batch.Firehose, 2)
	assert.Same(t, first, batch.Firehose[0])
	assert.Same(t, second, batch.Firehose[1])
	assert.Empty(t, m.firehose, "handed-over chunks leave the buffer")

	require.NoError(t, m.handleDataRequest())
	assert.Empty(t, recvWorkBatch(t, h).Firehose)
}

func TestSuspendedDispatchedTerminatedSkipped(t *testing.T) {
	h := newHarness()
	users := testUsers(3, 30)
	users[0].Suspended = true
	users[1].Terminated = true
	m := newManager(h, users, Config{Batchsize: 10})

	require.NoError(t, m.handleDataRequest())
	batch := recvWorkBatch(t, h)

	var uids []string
	for _, pack := range batch.Packs {
		uids = append(uids, pack.User.UID)
	}
	assert.Contains(t, uids, users[0].UID, "suspended users still flow through the pipeline")
	assert.NotContains(t, uids, users[1].UID)
	assert.Contains(t, uids, users[2].UID)
}

func TestLivenessGuardDispatchesIdleUser(t *testing.T) {
	h := newHarness()
	users := testUsers(4, 0) // nobody ever acts
	m := newManager(h, users, Config{Batchsize: 10, LurkerFraction: 0})

	require.NoError(t, m.handleDataRequest())
	batch := recvWorkBatch(t, h)
	require.Len(t, batch.Packs, 1)
	assert.Zero(t, batch.Packs[0].User.PendingActions)
}

func TestAllTerminatedFails(t *testing.T) {
	h := newHarness()
	users := testUsers(2, 30)
	for _, u := range users {
		u.Terminated = true
	}
	m := newManager(h, users, Config{Batchsize: 10})

	err := m.handleDataRequest()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dispatchable users")
}

func TestScheduleMaterializedOnDayStart(t *testing.T) {
	h := newHarness()
	users := testUsers(5, 10)
	sched := clock.NewSchedule(clock.ScheduleConfig{Seed: 3})
	m := newManager(h, users, Config{
		Batchsize: 10,
		Clock:     sched,
		Schedule:  sched,
	})

	require.NoError(t, m.handleDataRequest())
	recvWorkBatch(t, h)

	total := 0
	for _, c := range m.dayCounts {
		total += c
	}
	assert.Positive(t, total)
	assert.Equal(t, total, sched.Remaining())
}

func TestApplyModeration(t *testing.T) {
	h := newHarness()
	users := testUsers(1, 5)
	users[0].Newsfeed = []*types.Message{{MID: "m"}}
	m := newManager(h, users, Config{})

	uid := users[0].UID
	m.applyModeration(&types.ModerationUpdate{
		UID:                uid,
		Suspended:          true,
		SuspensionLiftTime: 1.5,
		Strikes:            []float64{1.2},
		ClearFeed:          true,
	})

	u := m.users[uid]
	assert.True(t, u.Suspended)
	assert.Equal(t, 1.5, u.SuspensionLiftTime)
	assert.Equal(t, []float64{1.2}, u.Strikes)
	assert.Empty(t, u.Newsfeed)
	assert.False(t, u.Terminated)

	m.applyModeration(&types.ModerationUpdate{UID: uid, Terminated: true})
	assert.True(t, u.Terminated)

	// Unknown users are ignored.
	m.applyModeration(&types.ModerationUpdate{UID: "ghost", Terminated: true})
}

func TestRunStopsOnStop(t *testing.T) {
	h := newHarness()
	m := newManager(h, testUsers(2, 5), Config{})

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run() }()

	boot := h.enterBarrier()
	boot.Wait()

	h.analyzer.Send(h.ranks.DataManager, bus.Stop)

	down := h.enterBarrier()
	down.Wait()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not exit after stop")
	}
}

func TestRunEscalatesOnQuiescence(t *testing.T) {
	h := newHarness()
	m := newManager(h, testUsers(2, 5), Config{ProbeTimeout: 20 * time.Millisecond})

	errCh := make(chan error, 1)
	go func() { errCh <- m.Run() }()

	boot := h.enterBarrier()
	boot.Wait()

	// Send nothing: the probe window elapses and the manager
	// broadcasts stop itself.
	down := h.enterBarrier()
	down.Wait()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, errors.Is(err, bus.ErrStalled))
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not exit after stall")
	}

	for _, ep := range h.others() {
		env, ok := ep.TryPoll()
		require.True(t, ok, "missing escalated stop")
		assert.True(t, env.IsStop())
	}
}
