// Package policy implements the Policy Evaluator participant: the
// moderation sidecar that turns bad posting behavior into strikes,
// suspensions and terminations.
//
// The evaluator sits off the main dataflow path. Workers send it a
// clone of every user they process; it answers to nobody and only
// speaks to the Data Manager through occasional ModerationUpdate
// envelopes. Rule evaluation is clocked by the copies themselves: a
// copy's dispatch timestamp is "now", so the evaluator keeps no clock
// and cannot stall the pipeline.
//
// # Rules
//
// Per copy, in order: a terminated user's copy is ignored (the verdict
// is re-sent if the copy shows it has not landed); strikes older than
// the strike window expire; a due suspension lifts; a turn flagged as
// bad posting earns a strike, and the strike count decides between a
// fresh suspension and termination at the limit. Suspension length is
// SuspensionUnit times the live strike count, and a new suspension
// empties the user's newsfeed.
//
// # Reconciliation
//
// The Data Manager folds updates in lazily, and worker-returned copies
// can overwrite them a round later. The evaluator therefore keeps its
// own ledger and re-issues an update whenever an incoming copy
// disagrees with it, so verdicts converge onto the authoritative
// record no matter how the two channels interleave.
package policy
