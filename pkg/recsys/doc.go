// Package recsys implements the Recommender participant: the feed
// builder sitting between the Data Manager and the worker pool.
//
// # Architecture
//
//	agntPoolMngr ──dataReq──► Recommender ──dataReq──► dataMngr
//	                              ▲                       │
//	                              └───────WorkBatch───────┘
//	                              │
//	            ┌─────────────────┼─────────────────┐
//	            ▼                 ▼                 ▼
//	       per-user feed     AnalyzerPack      []*User to
//	       assembly          to analyzer       agntPoolMngr
//
// Data requests pass through unchanged; the interesting work happens
// when a WorkBatch arrives. Each pack's fresh activities join a
// bounded global inventory of recent messages, the pack's user gets a
// newly assembled feed, and the processed batch fans out to the
// Analyzer (for persistence and convergence) and to the Agent Pool
// Manager (for dispatch to workers).
//
// # Feed Assembly
//
// The inventory is partitioned per user into in-network messages
// (authored by accounts the user follows) and the rest. Half of each
// pool is admitted by default, always the oldest entries first, then:
//
//  1. CleanFeed collapses reshare chains. One reshare per chain root
//     survives, the most recent one, weighted by how often the root
//     appeared. Originals pass through unweighted.
//  2. RankByTopicSimilarity orders by cosine similarity between the
//     user's interests and each message's topics.
//  3. The result is truncated to the user's cut_off.
//
// Both sorts are stable, so ties preserve the prior stage's order and
// a given inventory always produces the same feed.
//
// The inventory holds at most 2000 messages; overflow keeps only the
// most recent 1000.
//
// # Moderation Filter
//
// The recommender never talks to the Policy Evaluator. It learns
// suspension state from the user copies flowing through it and, when
// the filter is enabled, drops inventory messages whose author it
// currently believes suspended. The knowledge is lazy and lifts the
// same way it was learned, from a later copy of the same user.
package recsys
