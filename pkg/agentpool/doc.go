// Package agentpool implements the dispatcher that keeps workers fed.
//
// The dispatcher drives the pipeline's request cycle: it asks the
// Recommender for the next user batch, waits for the reply, scatters
// the users across worker ranks uniformly at random, and immediately
// asks again. Exactly one request is outstanding at any time, so the
// Data Manager is never flooded and an empty reply simply triggers
// the next request.
//
// Load balancing is stateless by choice. Workers run identical code
// and user turns are cheap, so uniform random assignment spreads load
// well without tracking worker queues.
package agentpool
