// Package runstore keeps a local registry of simulation runs.
//
// Each run gets one record: when it started, how it ended (converged,
// stopped, or failed and why), where its output files live, and the
// headline statistics. Records are stored as JSON values in a single
// BoltDB bucket under the engine's data directory, so past runs can be
// listed and inspected without touching the output folders themselves.
package runstore
