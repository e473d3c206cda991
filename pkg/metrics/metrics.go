package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bus metrics
	EnvelopesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simsom_envelopes_sent_total",
			Help: "Total number of envelopes sent by sender role",
		},
		[]string{"role"},
	)

	OutstandingDeliveries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "simsom_outstanding_deliveries",
			Help: "Asynchronous deliveries in flight by sender role",
		},
		[]string{"role"},
	)

	// Data Manager metrics
	MessagesTimestamped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_messages_timestamped_total",
			Help: "Total number of messages assigned a clock time",
		},
	)

	UsersDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_users_dispatched_total",
			Help: "Total number of users dispatched into the pipeline",
		},
	)

	FirehoseChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_firehose_chunks_total",
			Help: "Total number of firehose chunks buffered",
		},
	)

	FirehoseChunksDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_firehose_chunks_dropped_total",
			Help: "Firehose chunks evicted before delivery to keep the buffer bounded",
		},
	)

	SimulationDay = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsom_day",
			Help: "Current simulated day index at the Data Manager",
		},
	)

	BatchBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simsom_batch_build_duration_seconds",
			Help:    "Time taken by the Data Manager to assemble a work batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recommender metrics
	FeedsBuilt = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_feeds_built_total",
			Help: "Total number of newsfeeds constructed",
		},
	)

	InventorySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsom_inventory_size",
			Help: "Messages currently held in the global inventory",
		},
	)

	FeedBuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "simsom_feed_build_duration_seconds",
			Help:    "Time taken to build all feeds of one work batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker metrics
	MessagesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simsom_messages_created_total",
			Help: "Total number of messages created by kind (post or reshare)",
		},
		[]string{"kind"},
	)

	ViewsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_views_recorded_total",
			Help: "Total number of passive views recorded",
		},
	)

	// Policy metrics
	StrikesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_strikes_total",
			Help: "Total number of moderation strikes recorded",
		},
	)

	SuspensionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_suspensions_total",
			Help: "Total number of user suspensions",
		},
	)

	TerminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "simsom_terminations_total",
			Help: "Total number of user terminations",
		},
	)

	// Analyzer metrics
	CSVRowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simsom_csv_rows_written_total",
			Help: "Total number of rows written by output stream",
		},
		[]string{"stream"},
	)

	MeanQuality = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsom_mean_quality",
			Help: "Most recent mean message quality observed by the convergence monitor",
		},
	)

	// Runtime metrics
	GoroutinesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsom_goroutines_total",
			Help: "Number of goroutines in the simulation process",
		},
	)

	HeapAllocBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "simsom_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EnvelopesSent)
	prometheus.MustRegister(OutstandingDeliveries)
	prometheus.MustRegister(MessagesTimestamped)
	prometheus.MustRegister(UsersDispatched)
	prometheus.MustRegister(FirehoseChunks)
	prometheus.MustRegister(FirehoseChunksDropped)
	prometheus.MustRegister(SimulationDay)
	prometheus.MustRegister(BatchBuildDuration)
	prometheus.MustRegister(FeedsBuilt)
	prometheus.MustRegister(InventorySize)
	prometheus.MustRegister(FeedBuildDuration)
	prometheus.MustRegister(MessagesCreated)
	prometheus.MustRegister(ViewsRecorded)
	prometheus.MustRegister(StrikesTotal)
	prometheus.MustRegister(SuspensionsTotal)
	prometheus.MustRegister(TerminationsTotal)
	prometheus.MustRegister(CSVRowsWritten)
	prometheus.MustRegister(MeanQuality)
	prometheus.MustRegister(GoroutinesTotal)
	prometheus.MustRegister(HeapAllocBytes)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
