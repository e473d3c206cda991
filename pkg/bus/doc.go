/*
Package bus provides the in-process point-to-point transport connecting
SimSoM's participants.

The bus gives each participant (identified by a rank) one mailbox and a
small message-passing vocabulary: non-blocking tagged sends, bounded
in-flight delivery tracking, probe-with-timeout receives, a STOP
broadcast, and a reusable all-ranks barrier. Participants are plain
goroutines, but the discipline is that of independent processes: no
shared mutable state crosses the bus except immutable messages and
explicitly cloned users.

# Architecture

	┌─────────────────────── BUS ────────────────────────────────┐
	│                                                            │
	│  rank 0   analyzer      ──┐                                │
	│  rank 1   dataMngr      ──┤                                │
	│  rank 2   recSys        ──┤     mailboxes                  │
	│  rank 3   agntPoolMngr  ──┼──▶  [chan Envelope] × N        │
	│  rank 4   policyEval    ──┤     (buffered, default 256)    │
	│  rank 5+  worker        ──┘                                │
	│                                                            │
	│  Send(to, body)                                            │
	│    fast path: buffered mailbox accepts immediately         │
	│    slow path: tracked delivery goroutine                   │
	│    high water: sender waits for all of its deliveries      │
	│                                                            │
	│  Poll(timeout)                                             │
	│    pending envelope → (envelope, true)                     │
	│    window elapses   → (zero, false)   = quiescence         │
	│                                                            │
	│  Barrier()                                                 │
	│    generation barrier across all N ranks, reusable         │
	└────────────────────────────────────────────────────────────┘

# Envelopes

Every payload travels as an Envelope carrying the sender's role:

	(dataMngr, *types.WorkBatch)
	(worker,   *types.ProcessedBatch)
	(analyzer, "STOP")

Receivers dispatch on the role first and the body type second; an
unexpected combination is a protocol error and aborts the run rather
than being skipped.

# Delivery Semantics

Send never blocks the caller on a full mailbox. The first attempt is a
non-blocking channel send; on failure the envelope is handed to a
delivery goroutine counted against the endpoint's in-flight total.
When that total crosses the bus high-water mark (default 100) the
sender drains all of its own deliveries before continuing, which keeps
memory bounded and mirrors batch completion checks on asynchronous
sends.

Consequences worth knowing:

  - Pairwise ordering is guaranteed only while the receiver keeps up;
    once deliveries go asynchronous, envelopes may arrive reordered.
    Every payload in the pipeline is self-contained, so consumers never
    depend on cross-envelope order.
  - Flush waits for this endpoint's in-flight deliveries only.
  - Close releases deliveries stuck on a mailbox nobody will read
    again; the engine calls it after all participants have exited.

# Quiescence

Poll returning false means nothing arrived within the window. The
participants treat this as "the pipeline has quiesced around me": if
they have not seen STOP yet they broadcast it themselves, turning a
local stall into a global, orderly termination instead of a silent
deadlock.

# Shutdown Protocol

 1. Some participant decides to stop (convergence, stall, signal)
    and broadcasts STOP to every other rank.
 2. Each receiver exits its loop on the next poll that surfaces the
    STOP envelope.
 3. Each participant flushes its outstanding sends, drains straggler
    envelopes until a quiet window passes, and enters the barrier.
 4. The barrier releases when all ranks have arrived; everyone exits.

The barrier is also used once at startup so no participant begins
probing before all mailboxes exist.

# Usage

Engine side:

	b := bus.New(bus.Config{Participants: n})
	idx := bus.NewRankIndex(n)

	ep := b.Join(idx.DataManager, types.RoleDataManager)

Participant loop skeleton:

	ep.Barrier() // bootstrap
	for {
		env, ok := ep.Poll(timeout)
		if !ok {
			ep.Broadcast(bus.Stop) // quiescence escalation
			break
		}
		if env.IsStop() {
			break
		}
		// dispatch on env.From / env.Body
	}
	ep.Flush()
	ep.Drain(drainWindow)
	ep.Barrier() // shutdown
*/
package bus
