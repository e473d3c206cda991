package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simsomlab/simsom/pkg/config"
	"github.com/simsomlab/simsom/pkg/log"
	"github.com/simsomlab/simsom/pkg/metrics"
	"github.com/simsomlab/simsom/pkg/runstore"
	"github.com/simsomlab/simsom/pkg/sim"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "simsom",
	Short: "SimSoM - social media simulation engine",
	Long: `SimSoM simulates information spreading on a social network as a
pipeline of cooperating participants: a data manager owning the user
records and the simulation clock, a recommender assembling newsfeeds,
a pool of agent workers acting on behalf of users, a policy evaluator
moderating bad actors, and an analyzer persisting every interaction
until a convergence criterion is met.

A single binary runs the whole pipeline in-process.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"SimSoM version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation to convergence",
	Long: `Run a simulation with the given network and simulator specs.

Spec files may be JSON or YAML; omitted files fall back to built-in
defaults. Flags override individual spec values.

Examples:
  # Small default run
  simsom run

  # Configured run with four workers and live metrics
  simsom run --network_spec net.yaml --simulator_spec sim.yaml \
    --participants 9 --metrics-addr 127.0.0.1:9090`,
	RunE: runSimulation,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded simulation runs",
	RunE:  listRuns,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("SimSoM version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func init() {
	runCmd.Flags().String("network_spec", "", "Network spec file (.json, .yaml)")
	runCmd.Flags().String("simulator_spec", "", "Simulator spec file (.json, .yaml)")
	runCmd.Flags().Int("participants", 0, "Participant count override (5 singleton roles + workers)")
	runCmd.Flags().String("output", "", "Output folder override")
	runCmd.Flags().Int64("seed", 0, "Seed override for network and simulator")
	runCmd.Flags().String("data-dir", "./simsom-data", "Directory for the run registry")
	runCmd.Flags().String("metrics-addr", "", "Expose prometheus metrics on this address")
	runCmd.Flags().Bool("verbose", false, "Log interval statistics during the run")
	runCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("log-json", false, "Log JSON instead of console output")
	runCmd.Flags().String("log-file", "", "Also log to this file with rotation")

	runsCmd.Flags().String("data-dir", "./simsom-data", "Directory for the run registry")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")
	logFile, _ := cmd.Flags().GetString("log-file")
	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
		File:       logFile,
	})
	metrics.SetVersion(Version)

	netCfg := config.DefaultNetworkConfig()
	if path, _ := cmd.Flags().GetString("network_spec"); path != "" {
		loaded, err := config.LoadNetworkConfig(path)
		if err != nil {
			return err
		}
		netCfg = *loaded
	}

	simCfg := config.DefaultSimulatorConfig()
	if path, _ := cmd.Flags().GetString("simulator_spec"); path != "" {
		loaded, err := config.LoadSimulatorConfig(path)
		if err != nil {
			return err
		}
		simCfg = *loaded
	}

	if cmd.Flags().Changed("participants") {
		simCfg.Participants, _ = cmd.Flags().GetInt("participants")
	}
	if cmd.Flags().Changed("output") {
		simCfg.OutputFolder, _ = cmd.Flags().GetString("output")
	}
	if cmd.Flags().Changed("metrics-addr") {
		simCfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		netCfg.Seed = seed
		simCfg.Seed = seed
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		simCfg.Verbose = true
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	store, err := runstore.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	engine, err := sim.New(sim.Config{
		Network:   netCfg,
		Simulator: simCfg,
		Store:     store,
	})
	if err != nil {
		return err
	}

	// First signal winds the pipeline down cleanly; a second one kills
	// the process the usual way.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupt received, stopping run...")
		engine.Interrupt()
		signal.Stop(sigCh)
	}()

	fmt.Printf("Starting run %s\n", engine.RunID())
	fmt.Printf("  Workers: %d\n", simCfg.Workers())
	fmt.Printf("  Output:  %s\n", engine.OutputDir())
	fmt.Println()

	res, err := engine.Run()
	if err != nil {
		return err
	}

	fmt.Println("✓ Run finished")
	fmt.Printf("  Run ID:       %s\n", res.RunID)
	fmt.Printf("  Users:        %d\n", res.Users)
	if res.Reason != "" {
		fmt.Printf("  Converged:    %s\n", res.Reason)
	} else {
		fmt.Println("  Stopped before convergence")
	}
	fmt.Printf("  Activities:   %d\n", res.ActivityRows)
	fmt.Printf("  Passivities:  %d\n", res.PassivityRows)
	fmt.Printf("  Mean quality: %.4f\n", res.MeanQuality)
	fmt.Printf("  Output:       %s\n", res.OutputDir)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	store, err := runstore.Open(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-36s  %-9s  %-19s  %6s  %10s  %s\n",
		"ID", "STATUS", "STARTED", "USERS", "ACTIVITIES", "REASON")
	for _, r := range runs {
		reason := r.Reason
		if reason == "" && r.Error != "" {
			reason = "error: " + r.Error
		}
		fmt.Printf("%-36s  %-9s  %-19s  %6d  %10d  %s\n",
			r.ID,
			r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Users,
			r.ActivityRows,
			reason,
		)
	}
	return nil
}
