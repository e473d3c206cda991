// Package sim assembles and runs one simulation.
//
// The engine owns everything a run needs: it validates configuration,
// generates (or accepts) the agent population, sizes the bus, lays out
// the rank index, constructs the six participant roles with their
// seeds spread over independent streams, and runs each as a goroutine.
// Run blocks until the shutdown barrier releases and then reports the
// outcome: the convergence reason, output row counts, and the overall
// mean quality.
//
// Lifecycle around the pipeline:
//
//   - a RunRecord is written to the run registry at launch and again
//     at completion with the final status (converged, stopped, or
//     failed),
//   - when a metrics address is configured, the prometheus and health
//     endpoints are served and the gauge collector samples live engine
//     state for the duration of the run,
//   - Interrupt feeds a stop signal into every mailbox, letting a
//     signal handler end the run through the same path as a normal
//     convergence.
//
// One Engine is good for exactly one Run.
package sim
