/*
Package log provides structured logging for SimSoM using zerolog.

The log package wraps zerolog behind a small global logger with helpers
for attaching simulation context (role, rank, run ID) to every line.
All participants log through this package so a run's output can be
filtered by participant, level, or run after the fact.

# Architecture

One process hosts every participant, so all goroutines share a single
global logger configured once at startup:

	┌───────────────────── LOGGING PIPELINE ─────────────────────┐
	│                                                            │
	│  Participant goroutines                                    │
	│    analyzer / dataMngr / recSys / agntPoolMngr /           │
	│    policyEval / worker[n]                                  │
	│          │                                                 │
	│          ▼                                                 │
	│  Child loggers (WithRank, WithRole, WithComponent)         │
	│          │                                                 │
	│          ▼                                                 │
	│  Global zerolog.Logger                                     │
	│          │                                                 │
	│          ├──▶ Console (human-readable or JSON)             │
	│          └──▶ Rotating file (lumberjack, optional)         │
	└────────────────────────────────────────────────────────────┘

# Log Levels

Four levels are supported, mapped onto zerolog's:

	debug  per-envelope and per-batch detail, very chatty
	info   lifecycle events (start, new day, convergence, shutdown)
	warn   recoverable oddities (probe timeouts, dropped chunks)
	error  protocol violations and aborts

The level is global. Long simulations should run at info; debug is
meant for replaying a few batches when chasing a pipeline bug.

# Output Formats

Console output defaults to zerolog's ConsoleWriter with RFC3339
timestamps. JSONOutput switches to raw JSON lines for machine parsing.
Setting Config.File additionally tees all lines into a rotating file
(50 MB per file, 3 backups, compressed by default).

# Field Conventions

Participants attach stable fields so lines are greppable:

	role       envelope sender role (worker, dataMngr, recSys, ...)
	rank       participant index on the bus
	component  engine-internal subsystem (engine, bus, runstore)
	run_id     run identifier from the run registry

# Usage

Initialization (done once, in the CLI entrypoint):

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		File:       "simsom.log",
	})

Participant logger:

	logger := log.WithRank("worker", 5)
	logger.Info().Int("batch", len(packs)).Msg("flushing processed batch")

Engine component logger:

	logger := log.WithComponent("engine")
	logger.Info().Int("participants", n).Msg("starting simulation")

# Best Practices

 1. Create one child logger per participant and reuse it
 2. Keep Msg strings constant; put variables in fields
 3. Log state transitions at info, per-message detail at debug
 4. Never log from a hot loop without checking the level cost
*/
package log
