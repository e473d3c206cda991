/*
Package metrics provides Prometheus metrics collection and exposition for SimSoM.

The metrics package defines every counter, gauge, and histogram the
simulation publishes, plus a periodic collector for runtime state and
HTTP handlers for health, readiness, and liveness probes. All metrics
are registered with the default Prometheus registry at package init.

# Architecture

	┌────────────────── METRICS PIPELINE ──────────────────────┐
	│                                                          │
	│  Participants                 Collector (periodic)       │
	│    bus.Send ──▶ counters        runtime.NumGoroutine     │
	│    timestamping, feeds,         runtime.MemStats         │
	│    strikes, CSV rows            engine Source snapshot   │
	│         │                            │                   │
	│         ▼                            ▼                   │
	│  ┌──────────────────────────────────────────┐            │
	│  │       Prometheus default registry        │            │
	│  └──────────────────┬───────────────────────┘            │
	│                     │                                    │
	│                     ▼                                    │
	│    GET /metrics  (promhttp, optional server)             │
	│    GET /health   /ready   /live                          │
	└──────────────────────────────────────────────────────────┘

# Metric Inventory

Bus:

	simsom_envelopes_sent_total{role}     envelopes sent per sender role
	simsom_outstanding_deliveries{role}   async deliveries in flight

Data Manager:

	simsom_messages_timestamped_total
	simsom_users_dispatched_total
	simsom_firehose_chunks_total / simsom_firehose_chunks_dropped_total
	simsom_day
	simsom_batch_build_duration_seconds

Recommender:

	simsom_feeds_built_total
	simsom_inventory_size
	simsom_feed_build_duration_seconds

Workers:

	simsom_messages_created_total{kind}   kind is post or reshare
	simsom_views_recorded_total

Policy Evaluator:

	simsom_strikes_total / simsom_suspensions_total / simsom_terminations_total

Analyzer:

	simsom_csv_rows_written_total{stream}   stream is activities or passivities
	simsom_mean_quality

# Collector

The Collector samples cheap, race-free state on an interval (default
15s): goroutine count, heap allocation, and whatever the engine's
Source implementation exposes (outstanding deliveries, current day,
inventory size). Point metrics are updated inline by the participants
at the moment of the event; the collector only covers state that has
no natural update point.

# Health Endpoints

Participants register themselves as they start and update their state
as they exit. Three handlers expose this:

	/health   healthy unless some participant failed with an error
	/ready    ready once all five singleton roles are running
	/live     always 200 while the process is up

# Usage

Wiring the HTTP surface (done by the engine when metrics_addr is set):

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

Timing an operation:

	timer := metrics.NewTimer()
	batch := m.buildBatch()
	timer.ObserveDuration(metrics.BatchBuildDuration)
*/
package metrics
