package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinParticipants is the smallest population of participants a run can
// have: five singleton roles plus at least one worker.
const MinParticipants = 6

// NetworkConfig describes how the follower network is obtained.
type NetworkConfig struct {
	FromFile         bool   `json:"from_file" yaml:"from_file"`
	RealWorldNetwork string `json:"real_world_network" yaml:"real_world_network"`

	// Synthetic generation parameters, used when FromFile is false.
	NetSize           int     `json:"net_size" yaml:"net_size"`
	ProbabilityFollow float64 `json:"probability_follow" yaml:"probability_follow"`
	AvgNFriend        int     `json:"avg_n_friend" yaml:"avg_n_friend"`

	// Agent attribute sampling.
	MaxActionsPerDay float64 `json:"max_actions_per_day" yaml:"max_actions_per_day"`
	NTopics          int     `json:"n_topics" yaml:"n_topics"`
	MaxInterests     int     `json:"max_interests" yaml:"max_interests"`
	QualityAlpha     float64 `json:"quality_alpha" yaml:"quality_alpha"`
	QualityBeta      float64 `json:"quality_beta" yaml:"quality_beta"`
	QualityLower     float64 `json:"quality_lower" yaml:"quality_lower"`
	QualityUpper     float64 `json:"quality_upper" yaml:"quality_upper"`
	ShadowFraction   float64 `json:"shadow_fraction" yaml:"shadow_fraction"`

	Seed int64 `json:"seed" yaml:"seed"`
}

// SimulatorConfig controls the engine, the convergence monitor, and the
// behavioral models.
type SimulatorConfig struct {
	DataManagerBatchsize int `json:"data_manager_batchsize" yaml:"data_manager_batchsize"`

	// Convergence criteria. When several are enabled the effective one
	// is resolved by priority: day count, sliding window, then EMA.
	DayCountCriterion      bool    `json:"day_count_criterion" yaml:"day_count_criterion"`
	TargetDays             float64 `json:"target_days" yaml:"target_days"`
	SlidingWindowMethod    bool    `json:"sliding_window_method" yaml:"sliding_window_method"`
	SlidingWindowSize      int     `json:"sliding_window_size" yaml:"sliding_window_size"`
	SlidingWindowThreshold float64 `json:"sliding_window_threshold" yaml:"sliding_window_threshold"`
	EMAQualityMethod       bool    `json:"ema_quality_method" yaml:"ema_quality_method"`
	EMAQualityConvergence  float64 `json:"ema_quality_convergence" yaml:"ema_quality_convergence"`

	Verbose                 bool `json:"verbose" yaml:"verbose"`
	PrintInterval           int  `json:"print_interval" yaml:"print_interval"`
	SaveActiveInteractions  bool `json:"save_active_interactions" yaml:"save_active_interactions"`
	SavePassiveInteractions bool `json:"save_passive_interactions" yaml:"save_passive_interactions"`

	// Engine.
	Participants    int     `json:"participants" yaml:"participants"`
	WorkerBatchsize int     `json:"worker_batchsize" yaml:"worker_batchsize"`
	ProbeTimeoutSec float64 `json:"probe_timeout_sec" yaml:"probe_timeout_sec"`
	DrainTimeoutSec float64 `json:"drain_timeout_sec" yaml:"drain_timeout_sec"`
	OutputFolder    string  `json:"output_folder" yaml:"output_folder"`
	MetricsAddr     string  `json:"metrics_addr" yaml:"metrics_addr"`

	// Clock. RateClock selects the rate-driven variant; otherwise the
	// Data Manager materializes per-day schedules.
	RateClock        bool    `json:"rate_clock" yaml:"rate_clock"`
	Circadian        bool    `json:"circadian" yaml:"circadian"`
	SpikeProbability float64 `json:"spike_probability" yaml:"spike_probability"`

	// Daily activity sampling.
	LurkerFraction     float64 `json:"lurker_fraction" yaml:"lurker_fraction"`
	MarkovActivity     bool    `json:"markov_activity" yaml:"markov_activity"`
	MarkovStayActive   float64 `json:"markov_stay_active" yaml:"markov_stay_active"`
	MarkovBecomeActive float64 `json:"markov_become_active" yaml:"markov_become_active"`

	// Agent behavior.
	Mu                  float64 `json:"mu" yaml:"mu"`
	AppealExponent      float64 `json:"appeal_exponent" yaml:"appeal_exponent"`
	BadQualityThreshold float64 `json:"bad_quality_threshold" yaml:"bad_quality_threshold"`

	// Moderation.
	StrikeWindow    float64 `json:"strike_window" yaml:"strike_window"`
	StrikeLimit     int     `json:"strike_limit" yaml:"strike_limit"`
	SuspensionUnit  float64 `json:"suspension_unit" yaml:"suspension_unit"`
	FilterSuspended bool    `json:"filter_suspended" yaml:"filter_suspended"`

	Seed int64 `json:"seed" yaml:"seed"`
}

// ConvergenceMethod names the effective convergence criterion.
type ConvergenceMethod string

const (
	ConvergeDayCount      ConvergenceMethod = "day_count"
	ConvergeSlidingWindow ConvergenceMethod = "sliding_window"
	ConvergeEMA           ConvergenceMethod = "ema_quality"
	ConvergeNone          ConvergenceMethod = "none"
)

// DefaultNetworkConfig returns a synthetic-network configuration with
// moderate defaults.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		NetSize:           200,
		ProbabilityFollow: 0.5,
		AvgNFriend:        10,
		MaxActionsPerDay:  20,
		NTopics:           5,
		MaxInterests:      3,
		QualityAlpha:      0.5,
		QualityBeta:       0.15,
		QualityLower:      0,
		QualityUpper:      1,
		ShadowFraction:    0,
		Seed:              1,
	}
}

// DefaultSimulatorConfig returns engine defaults tuned for small local
// runs.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		DataManagerBatchsize:    10,
		DayCountCriterion:       true,
		TargetDays:              5,
		SlidingWindowSize:       500,
		SlidingWindowThreshold:  0.001,
		EMAQualityConvergence:   0.001,
		PrintInterval:           1000,
		SaveActiveInteractions:  true,
		SavePassiveInteractions: true,
		Participants:            MinParticipants,
		WorkerBatchsize:         32,
		ProbeTimeoutSec:         3,
		DrainTimeoutSec:         0.5,
		OutputFolder:            "output",
		SpikeProbability:        0.001,
		Circadian:               true,
		LurkerFraction:          0.3,
		MarkovStayActive:        0.7,
		MarkovBecomeActive:      0.3,
		Mu:                      0.5,
		AppealExponent:          5,
		BadQualityThreshold:     0.2,
		StrikeWindow:            0.1,
		StrikeLimit:             3,
		SuspensionUnit:          0.0002,
		Seed:                    1,
	}
}

// LoadNetworkConfig reads a network spec file. The format is chosen by
// extension: .json, or .yaml/.yml.
func LoadNetworkConfig(path string) (*NetworkConfig, error) {
	cfg := DefaultNetworkConfig()
	if err := loadInto(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load network config: %w", err)
	}
	return &cfg, nil
}

// LoadSimulatorConfig reads a simulator spec file, same formats as
// LoadNetworkConfig.
func LoadSimulatorConfig(path string) (*SimulatorConfig, error) {
	cfg := DefaultSimulatorConfig()
	if err := loadInto(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load simulator config: %w", err)
	}
	return &cfg, nil
}

func loadInto(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid JSON in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

// Validate checks generation parameters. It is called before any
// participant starts so bad configs fail fast.
func (c *NetworkConfig) Validate() error {
	if c.FromFile {
		if c.RealWorldNetwork == "" {
			return fmt.Errorf("from_file is set but real_world_network is empty")
		}
	} else {
		if c.NetSize <= 0 {
			return fmt.Errorf("net_size must be positive, got %d", c.NetSize)
		}
		if c.AvgNFriend <= 0 {
			return fmt.Errorf("avg_n_friend must be positive, got %d", c.AvgNFriend)
		}
		if c.ProbabilityFollow < 0 || c.ProbabilityFollow > 1 {
			return fmt.Errorf("probability_follow must be in [0,1], got %g", c.ProbabilityFollow)
		}
	}
	if c.NTopics <= 0 {
		return fmt.Errorf("n_topics must be positive, got %d", c.NTopics)
	}
	if c.MaxActionsPerDay <= 0 {
		return fmt.Errorf("max_actions_per_day must be positive, got %g", c.MaxActionsPerDay)
	}
	if c.QualityLower > c.QualityUpper {
		return fmt.Errorf("quality_lower %g exceeds quality_upper %g", c.QualityLower, c.QualityUpper)
	}
	if c.ShadowFraction < 0 || c.ShadowFraction > 1 {
		return fmt.Errorf("shadow_fraction must be in [0,1], got %g", c.ShadowFraction)
	}
	return nil
}

// Validate checks engine parameters.
func (c *SimulatorConfig) Validate() error {
	if c.Participants < MinParticipants {
		return fmt.Errorf("at least %d participants required (5 singleton roles + 1 worker), got %d",
			MinParticipants, c.Participants)
	}
	if c.DataManagerBatchsize <= 0 {
		return fmt.Errorf("data_manager_batchsize must be positive, got %d", c.DataManagerBatchsize)
	}
	if c.WorkerBatchsize <= 0 {
		return fmt.Errorf("worker_batchsize must be positive, got %d", c.WorkerBatchsize)
	}
	if c.ProbeTimeoutSec <= 0 {
		return fmt.Errorf("probe_timeout_sec must be positive, got %g", c.ProbeTimeoutSec)
	}
	if c.DayCountCriterion && c.TargetDays <= 0 {
		return fmt.Errorf("day_count_criterion needs target_days > 0, got %g", c.TargetDays)
	}
	if c.SlidingWindowMethod {
		if c.SlidingWindowSize <= 0 {
			return fmt.Errorf("sliding_window_method needs sliding_window_size > 0, got %d", c.SlidingWindowSize)
		}
		if c.SlidingWindowThreshold <= 0 {
			return fmt.Errorf("sliding_window_method needs sliding_window_threshold > 0, got %g", c.SlidingWindowThreshold)
		}
	}
	if c.EMAQualityMethod && c.EMAQualityConvergence <= 0 {
		return fmt.Errorf("ema_quality_method needs ema_quality_convergence > 0, got %g", c.EMAQualityConvergence)
	}
	if c.LurkerFraction < 0 || c.LurkerFraction > 1 {
		return fmt.Errorf("lurker_fraction must be in [0,1], got %g", c.LurkerFraction)
	}
	if c.Mu < 0 || c.Mu > 1 {
		return fmt.Errorf("mu must be in [0,1], got %g", c.Mu)
	}
	if c.SpikeProbability < 0 || c.SpikeProbability > 1 {
		return fmt.Errorf("spike_probability must be in [0,1], got %g", c.SpikeProbability)
	}
	if c.StrikeLimit <= 0 {
		return fmt.Errorf("strike_limit must be positive, got %d", c.StrikeLimit)
	}
	return nil
}

// Convergence resolves the effective criterion by priority when more
// than one flag is set.
func (c *SimulatorConfig) Convergence() ConvergenceMethod {
	switch {
	case c.DayCountCriterion:
		return ConvergeDayCount
	case c.SlidingWindowMethod:
		return ConvergeSlidingWindow
	case c.EMAQualityMethod:
		return ConvergeEMA
	default:
		return ConvergeNone
	}
}

// Workers returns the number of worker ranks implied by Participants.
func (c *SimulatorConfig) Workers() int {
	return c.Participants - (MinParticipants - 1)
}

// ProbeTimeout returns the probe window as a duration.
func (c *SimulatorConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSec * float64(time.Second))
}

// DrainTimeout returns the post-STOP drain window as a duration.
func (c *SimulatorConfig) DrainTimeout() time.Duration {
	if c.DrainTimeoutSec <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.DrainTimeoutSec * float64(time.Second))
}
