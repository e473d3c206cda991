// Package worker implements the agent-handler participants of the
// pipeline: the pool of identical goroutines that actually execute
// user turns.
//
// # Architecture
//
//	agntPoolMngr ──*User──► Worker (rank 5..N-1)
//	                          │ MakeActions
//	                          │ batch ≥ threshold, or mailbox idle
//	                          ├──ProcessedBatch──► dataMngr
//	                          └──[]*User clones──► policyEval
//
// A worker's whole job is MakeActions plus batching. The behavior
// model (package agent) turns the user's pending action budget into
// posts, reshares, and views; the worker accumulates the results and
// ships them downstream in batches so the Data Manager ingests whole
// chunks instead of single turns.
//
// # Batching
//
// Batch while busy, flush when idle: as long as the mailbox has users
// pending, turns accumulate up to the configured batch size. The
// moment the mailbox runs dry the batch is flushed before the worker
// blocks on its probe, and a final flush runs before the shutdown
// barrier, so no completed turn is ever stranded by a lull or by STOP.
//
// Every flush sends two envelopes: the ProcessedBatch to the Data
// Manager (which owns the returned user copies from then on) and an
// independent clone of each user to the Policy Evaluator, which is
// why moderation can run off the main dataflow without racing it.
//
// # Suspended Users
//
// A suspended user still completes the round trip so the Policy
// Evaluator sees them again and can lift the suspension, but the
// worker forfeits their action budget and produces nothing for them.
package worker
