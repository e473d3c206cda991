package sim

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simsomlab/simsom/pkg/config"
	"github.com/simsomlab/simsom/pkg/runstore"
	"github.com/simsomlab/simsom/pkg/types"
)

// testConfig is a small fast run: 50 users, two workers, day-count
// convergence.
func testConfig(t *testing.T) Config {
	t.Helper()

	net := config.DefaultNetworkConfig()
	net.NetSize = 50
	net.AvgNFriend = 5
	net.Seed = 11

	sim := config.DefaultSimulatorConfig()
	sim.Participants = 7
	sim.TargetDays = 2.5
	sim.OutputFolder = t.TempDir()
	sim.ProbeTimeoutSec = 2
	sim.DrainTimeoutSec = 0.2
	sim.Seed = 11

	return Config{Network: net, Simulator: sim}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestNewRejectsBadSimulatorConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.Participants = 5

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "participants")
}

func TestNewRejectsBadNetworkConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Network.NetSize = 0

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "net_size")
}

func TestNewRejectsEmptyPopulation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Users = []*types.User{}

	_, err := New(cfg)
	require.EqualError(t, err, "empty user population")
}

func TestNewFailsOnUnwritableOutput(t *testing.T) {
	cfg := testConfig(t)
	occupied := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(occupied, []byte("x"), 0o644))
	cfg.Simulator.OutputFolder = occupied

	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewGeneratesPopulation(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)

	assert.Len(t, e.users, 50)
	assert.NotEmpty(t, e.RunID())
	assert.Equal(t, filepath.Join(cfg.Simulator.OutputFolder, e.RunID()), e.OutputDir())
	assert.Len(t, e.runners, 7)
}

// TestRunConvergesOnDayCount drives a full three-day run through every
// participant and checks the output files, the run record, and the
// ordering guarantee on the activity stream.
func TestRunConvergesOnDayCount(t *testing.T) {
	cfg := testConfig(t)
	store, err := runstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	cfg.Store = store

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Run()
	require.NoError(t, err)
	assert.Contains(t, res.Reason, "target days")
	assert.Equal(t, 50, res.Users)
	assert.Positive(t, res.ActivityRows)
	assert.Positive(t, res.PassivityRows, "deep enough runs deliver staged views")
	assert.Greater(t, res.MeanQuality, 0.0)
	assert.LessOrEqual(t, res.MeanQuality, 1.0)

	acts := readCSV(t, filepath.Join(res.OutputDir, "activities.csv"))
	require.NotEmpty(t, acts)
	assert.Equal(t, []string{
		"message_id", "user_id", "quality", "appeal",
		"reshared_id", "reshared_user_id", "reshared_original_id", "clock_time",
	}, acts[0])
	require.Equal(t, res.ActivityRows, int64(len(acts)-1))

	last := -1.0
	reshares := 0
	for _, row := range acts[1:] {
		ts, err := strconv.ParseFloat(row[7], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ts, last, "clock time must never step back")
		last = ts
		if row[4] != "" {
			reshares++
			assert.NotEmpty(t, row[6], "reshares carry their chain root")
		}
	}
	assert.GreaterOrEqual(t, last, cfg.Simulator.TargetDays,
		"the row that crossed the goal is on disk")
	assert.Positive(t, reshares, "non-empty feeds produce reshares")

	pass := readCSV(t, filepath.Join(res.OutputDir, "passivities.csv"))
	assert.Equal(t, res.PassivityRows, int64(len(pass)-1))

	rec, err := store.GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusConverged, rec.Status)
	assert.Equal(t, res.Reason, rec.Reason)
	assert.Equal(t, res.ActivityRows, rec.ActivityRows)
	assert.Equal(t, 50, rec.Users)
	require.NotNil(t, rec.Simulator)
	assert.Equal(t, 7, rec.Simulator.Participants)
	require.NotNil(t, rec.Network)
	assert.Equal(t, 50, rec.Network.NetSize)
	assert.False(t, rec.FinishedAt.IsZero())

	assert.GreaterOrEqual(t, e.Day(), float64(2))
	assert.Positive(t, e.InventorySize())
	assert.Len(t, e.Outstanding(), 6, "one entry per role, workers folded together")
}

func TestRunStopsOnStableWindow(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.DayCountCriterion = false
	cfg.Simulator.SlidingWindowMethod = true
	cfg.Simulator.SlidingWindowSize = 50
	cfg.Simulator.SlidingWindowThreshold = 1.0 // any second window qualifies

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Run()
	require.NoError(t, err)
	assert.Contains(t, res.Reason, "window quality stabilized")
	assert.GreaterOrEqual(t, res.ActivityRows, int64(100), "two full windows must have flowed")
}

func TestRunRateClock(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.RateClock = true
	cfg.Simulator.TargetDays = 0.05

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Run()
	require.NoError(t, err)
	assert.Contains(t, res.Reason, "target days")

	acts := readCSV(t, filepath.Join(res.OutputDir, "activities.csv"))
	last := -1.0
	for _, row := range acts[1:] {
		ts, err := strconv.ParseFloat(row[7], 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ts, last)
		last = ts
	}
}

func TestRunInjectedUsers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.TargetDays = 0.2
	cfg.Users = []*types.User{
		{UID: "u0", MeanActionsPerDay: 5, CutOff: 15},
		{UID: "u1", MeanActionsPerDay: 5, CutOff: 15},
		{UID: "u2", MeanActionsPerDay: 5, CutOff: 15},
		{UID: "u3", MeanActionsPerDay: 5, CutOff: 15},
	}

	e, err := New(cfg)
	require.NoError(t, err)

	res, err := e.Run()
	require.NoError(t, err)
	assert.Equal(t, 4, res.Users)
	assert.Contains(t, res.Reason, "target days")
}

func TestInterruptStopsRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulator.TargetDays = 1000 // out of reach
	store, err := runstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	cfg.Store = store

	e, err := New(cfg)
	require.NoError(t, err)

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.Run()
		done <- outcome{res, err}
	}()

	time.Sleep(300 * time.Millisecond)
	e.Interrupt()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Empty(t, out.res.Reason)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not stop after interrupt")
	}

	rec, err := store.GetRun(e.RunID())
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusStopped, rec.Status)
	assert.Empty(t, rec.Error)
}
