/*
Package types defines the core data structures used throughout SimSoM.

This package contains the fundamental types that represent the simulation's
domain model, including users, messages, views, topic vectors, and the
payload shapes exchanged between participants. These types are used by all
other packages for agent behavior, feed building, moderation, and
persistence.

# Architecture

The types package is the foundation of SimSoM's data model. It defines:

  - Participant roles (worker, data manager, recommender, pool manager,
    policy evaluator, analyzer)
  - Agents (users) with network position, behavior parameters, and
    moderation state
  - Content (messages) with quality, appeal, topics, and reshare chains
  - Passive exposure records (views)
  - Pipeline payloads (data requests, user packs, batches, firehose chunks)

All types are designed to be:
  - Cheap to clone (explicit Clone for users, immutable sharing for messages)
  - Self-describing (deterministic IDs encode kind, counter, and author)
  - Free of behavior (sampling and feed logic live in agent and recsys)

# Ownership Model

The Data Manager owns the authoritative User record for every agent.
When a user is dispatched into the pipeline a clone travels through the
Recommender, Agent Pool Manager, and a worker; the clone that returns
replaces the authoritative record. A second clone branches off to the
Policy Evaluator, which reports back through ModerationUpdate rather
than by returning the user.

Messages follow the opposite discipline: a message is mutable only
between creation at a worker and timestamping at the Data Manager.
After Time is assigned the instance is immutable and may be shared by
any number of newsfeeds, inventory slots, and firehose chunks without
copying.

	┌──────────────┐   clone    ┌──────────┐   clone   ┌────────┐
	│ Data Manager │───────────▶│ pipeline │──────────▶│ worker │
	│ (authority)  │◀───────────│          │           └───┬────┘
	└──────────────┘  returned  └──────────┘     clone     │
	       ▲                                               ▼
	       │         ModerationUpdate             ┌──────────────┐
	       └──────────────────────────────────────│ Policy Eval  │
	                                              └──────────────┘

# Identifiers

Message, reshare, and view IDs are minted from per-user counters:

	P<n>_<uid>   original post, n = author's post counter at creation
	R<n>_<uid>   reshare, n = author's repost counter at creation
	V<n>_<uid>   view, n = viewer's view counter at creation

Counters only ever grow, so IDs are unique per user and stable across
re-runs with the same seed.

# Reshare Chains

A reshare records three links:

	ResharedID          the message that was directly reshared
	ResharedOriginalID  the root post of the whole chain
	ResharedUserID      author of the directly reshared message

Resharing an original post sets ResharedID and ResharedOriginalID to
the same value. Resharing a reshare copies the root from the target, so
arbitrarily deep chains always resolve their root in one hop. Quality
and appeal are copied from the target unchanged.

# Pipeline Payloads

Each hop between participants carries one of a small set of shapes:

	DataRequest      pool manager → recommender → data manager
	WorkBatch        data manager → recommender (packs + firehose chunks)
	[]*User          recommender → pool manager
	*User            pool manager → worker
	ProcessedBatch   worker → data manager
	[]*User          worker → policy evaluator
	ModerationUpdate policy evaluator → data manager
	AnalyzerPack     recommender → analyzer

# Usage

Creating a message chain:

	post := &types.Message{MID: "P0_u3", UID: "u3", Quality: 0.7, Appeal: 0.4}

	reshare := &types.Message{
		MID:                "R0_u5",
		UID:                "u5",
		Quality:            post.Quality,
		Appeal:             post.Appeal,
		ResharedID:         post.MID,
		ResharedOriginalID: post.MID,
		ResharedUserID:     post.UID,
	}

	reshare.IsReshare() // true
	reshare.RootID()    // "P0_u3"
	post.RootID()       // "P0_u3"

Cloning a user for dispatch:

	clone := user.Clone()
	clone.PendingActions = 4
	clone.DispatchedAt = now

Ranking by topic affinity:

	sim := user.Interests.Cosine(msg.Topics)

# Best Practices

 1. Never mutate a Message after the Data Manager assigned Time
 2. Always dispatch clones; keep the authoritative User inside the
    Data Manager
 3. Mint IDs through the per-user counters, never ad hoc
 4. Treat Friends and Followers as read-only after network generation
*/
package types
