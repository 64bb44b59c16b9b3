package metrics

import (
	"context"
	"runtime"
	"time"
)

// Collector periodically samples process-level metrics.
type Collector struct {
	metrics  *Metrics
	interval time.Duration
}

// NewCollector creates a collector sampling every interval.
func NewCollector(m *Metrics, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{metrics: m, interval: interval}
}

// Run samples system metrics until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.metrics.GoroutineCount.Set(float64(runtime.NumGoroutine()))
	c.metrics.MemoryUsage.Set(float64(ms.HeapAlloc))
	c.metrics.Uptime.Set(time.Since(c.metrics.startTime).Seconds())
}
