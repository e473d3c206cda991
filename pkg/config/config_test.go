package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNetworkConfigJSON(t *testing.T) {
	path := writeFile(t, "net.json", `{
		"net_size": 500,
		"probability_follow": 0.8,
		"avg_n_friend": 15
	}`)

	cfg, err := LoadNetworkConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.NetSize)
	assert.Equal(t, 0.8, cfg.ProbabilityFollow)
	assert.Equal(t, 15, cfg.AvgNFriend)

	// Keys absent from the file keep their defaults.
	assert.Equal(t, DefaultNetworkConfig().NTopics, cfg.NTopics)
	assert.False(t, cfg.FromFile)
}

func TestLoadSimulatorConfigYAML(t *testing.T) {
	path := writeFile(t, "sim.yaml", `
data_manager_batchsize: 25
day_count_criterion: false
ema_quality_method: true
ema_quality_convergence: 0.01
participants: 8
`)

	cfg, err := LoadSimulatorConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.DataManagerBatchsize)
	assert.False(t, cfg.DayCountCriterion)
	assert.True(t, cfg.EMAQualityMethod)
	assert.Equal(t, 8, cfg.Participants)
	assert.Equal(t, 3, cfg.Workers())
	assert.Equal(t, ConvergeEMA, cfg.Convergence())
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "net.toml", `net_size = 5`)

	_, err := LoadNetworkConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config extension")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadSimulatorConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeFile(t, "net.json", `{"net_size": `)

	_, err := LoadNetworkConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestNetworkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NetworkConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *NetworkConfig) {},
		},
		{
			name:    "zero net size",
			mutate:  func(c *NetworkConfig) { c.NetSize = 0 },
			wantErr: "net_size",
		},
		{
			name:    "probability out of range",
			mutate:  func(c *NetworkConfig) { c.ProbabilityFollow = 1.5 },
			wantErr: "probability_follow",
		},
		{
			name:    "from_file without path",
			mutate:  func(c *NetworkConfig) { c.FromFile = true },
			wantErr: "real_world_network",
		},
		{
			name: "from_file skips synthetic checks",
			mutate: func(c *NetworkConfig) {
				c.FromFile = true
				c.RealWorldNetwork = "edges.csv"
				c.NetSize = 0
			},
		},
		{
			name:    "inverted quality bounds",
			mutate:  func(c *NetworkConfig) { c.QualityLower = 0.9; c.QualityUpper = 0.1 },
			wantErr: "quality_lower",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultNetworkConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSimulatorConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimulatorConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *SimulatorConfig) {},
		},
		{
			name:    "too few participants",
			mutate:  func(c *SimulatorConfig) { c.Participants = 5 },
			wantErr: "at least 6 participants",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *SimulatorConfig) { c.DataManagerBatchsize = 0 },
			wantErr: "data_manager_batchsize",
		},
		{
			name:    "day count without target",
			mutate:  func(c *SimulatorConfig) { c.TargetDays = 0 },
			wantErr: "target_days",
		},
		{
			name: "sliding window without size",
			mutate: func(c *SimulatorConfig) {
				c.DayCountCriterion = false
				c.SlidingWindowMethod = true
				c.SlidingWindowSize = 0
			},
			wantErr: "sliding_window_size",
		},
		{
			name:    "negative probe timeout",
			mutate:  func(c *SimulatorConfig) { c.ProbeTimeoutSec = -1 },
			wantErr: "probe_timeout_sec",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSimulatorConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConvergencePriority(t *testing.T) {
	cfg := DefaultSimulatorConfig()
	cfg.DayCountCriterion = true
	cfg.SlidingWindowMethod = true
	cfg.EMAQualityMethod = true
	assert.Equal(t, ConvergeDayCount, cfg.Convergence())

	cfg.DayCountCriterion = false
	assert.Equal(t, ConvergeSlidingWindow, cfg.Convergence())

	cfg.SlidingWindowMethod = false
	assert.Equal(t, ConvergeEMA, cfg.Convergence())

	cfg.EMAQualityMethod = false
	assert.Equal(t, ConvergeNone, cfg.Convergence())
}

func TestTimeouts(t *testing.T) {
	cfg := DefaultSimulatorConfig()
	cfg.ProbeTimeoutSec = 0.25
	assert.Equal(t, 250*time.Millisecond, cfg.ProbeTimeout())

	cfg.DrainTimeoutSec = 0
	assert.Equal(t, 500*time.Millisecond, cfg.DrainTimeout())
}
