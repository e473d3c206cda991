// Package datamanager implements the participant that owns all
// authoritative user state and the simulation clock.
//
// # Architecture
//
//	                 dataReq (from recSys)
//	                      │
//	                      ▼
//	┌─────────────────────────────────────────────────────┐
//	│                    Manager                          │
//	│                                                     │
//	│  users_by_uid     outgoing_active/passive  firehose │
//	│  (authoritative)  (staged per user)        (FIFO)   │
//	│        │                  │                   │     │
//	│        ▼                  ▼                   ▼     │
//	│  day pool ──pop──► clone + staged ──► WorkBatch ────┼──► recSys
//	│  (activity                                          │
//	│   sampled)                                          │
//	│                                                     │
//	│  ProcessedBatch ──► shuffle ► timestamp ► stage ────┼──◄ worker
//	│  ModerationUpdate ──► reconcile ────────────────────┼──◄ policyEval
//	└─────────────────────────────────────────────────────┘
//
// # Ownership
//
// The manager is the only writer of user records, staging queues, the
// firehose buffer, and the clock. Dispatch always hands out clones;
// the clone returned by a worker replaces the authoritative record
// wholesale, which is what makes the per-user pipeline lock-free.
//
// # Days
//
// A simulated day starts when the previous day's pool has been fully
// dispatched. The activity simulator draws a per-user action count;
// users with a positive count form the active set, and a configured
// lurker fraction of the rest is mixed in so quiet users still get
// fresh feeds. The pool is shuffled and consumed batch by batch. When
// a schedule-driven clock is attached, the day's count vector is
// materialized into concrete timestamps up front.
//
// Terminated users never enter the pool. If a day samples nobody at
// all, one idle user is dispatched anyway so the request cycle keeps
// turning; if every user is terminated the manager escalates a stop
// instead.
//
// # Timestamps
//
// Messages are timestamped exactly once, at ingest, in arrival order,
// so time is monotonically non-decreasing across everything the
// manager emits. Each ingested worker batch becomes one firehose
// chunk; every data request drains the whole chunk buffer into the
// reply in stamp order, and the buffer drops its oldest half if it
// ever exceeds the high-water mark while no request arrives.
package datamanager
