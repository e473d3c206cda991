/*
Package config loads and validates SimSoM's two specification files.

A run is described by a network spec (how the follower graph is built)
and a simulator spec (engine, convergence, and behavior parameters).
Both accept JSON or YAML, chosen by file extension, and unmarshal on
top of documented defaults so sparse files stay valid.

# Configuration Files

Network spec:

	{
	  "net_size": 1000,
	  "probability_follow": 0.5,
	  "avg_n_friend": 10
	}

or, reading a real-world edge list instead of generating:

	{
	  "from_file": true,
	  "real_world_network": "follower_edges.csv"
	}

Simulator spec:

	{
	  "data_manager_batchsize": 10,
	  "day_count_criterion": true,
	  "target_days": 30,
	  "participants": 8,
	  "verbose": true,
	  "print_interval": 1000
	}

# Convergence Resolution

Exactly one convergence criterion drives a run. When a file enables
more than one flag, priority resolves the conflict instead of
erroring:

 1. day_count_criterion (target_days)
 2. sliding_window_method (sliding_window_size, sliding_window_threshold)
 3. ema_quality_method (ema_quality_convergence)

With no flag set the run only stops on SIGINT or quiescence.

# Validation

Validate is called before any participant starts:

  - participants must be at least 6 (five singleton roles + 1 worker)
  - batch sizes and probe timeout must be positive
  - the enabled convergence method must have usable parameters
  - probabilities and fractions must lie in [0,1]

Failures return a single descriptive error so the CLI can fail fast
with a human-readable message.

# Usage

	netCfg, err := config.LoadNetworkConfig("net.json")
	if err != nil {
		return err
	}
	simCfg, err := config.LoadSimulatorConfig("sim.yaml")
	if err != nil {
		return err
	}
	if err := netCfg.Validate(); err != nil {
		return err
	}
	if err := simCfg.Validate(); err != nil {
		return err
	}
*/
package config
