package metrics

import (
	"runtime"
	"time"
)

// Source exposes live engine state the collector samples. All methods
// must be safe to call from the collector goroutine while the
// simulation is running.
type Source interface {
	// Outstanding returns in-flight asynchronous deliveries per role.
	Outstanding() map[string]int

	// Day returns the current simulated day index.
	Day() float64

	// InventorySize returns the recommender's current inventory length.
	InventorySize() int
}

// Collector periodically samples engine and runtime state into gauges
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectRuntimeMetrics()
	c.collectEngineMetrics()
}

func (c *Collector) collectRuntimeMetrics() {
	GoroutinesTotal.Set(float64(runtime.NumGoroutine()))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	HeapAllocBytes.Set(float64(mem.HeapAlloc))
}

func (c *Collector) collectEngineMetrics() {
	if c.source == nil {
		return
	}

	for role, n := range c.source.Outstanding() {
		OutstandingDeliveries.WithLabelValues(role).Set(float64(n))
	}

	SimulationDay.Set(c.source.Day())
	InventorySize.Set(float64(c.source.InventorySize()))
}
