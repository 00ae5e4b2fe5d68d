package metrics

import (
	"time"

	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/registry"
	"github.com/drewrad8/strategos/pkg/types"
)

// Collector polls the registry and breaker registry on a fixed tick and
// updates the package-level gauges/counters above. Grounded on
// pkg/metrics/collector.go's ticker-driven Start/Stop/collect shape,
// repurposed from node/service/Raft polling to worker/breaker polling.
type Collector struct {
	reg      *registry.Registry
	breakers *breaker.Registry
	stopCh   chan struct{}

	tripped map[string]bool
}

// NewCollector constructs a Collector. breakers may be nil to skip
// breaker-state collection.
func NewCollector(reg *registry.Registry, breakers *breaker.Registry) *Collector {
	return &Collector{
		reg:      reg,
		breakers: breakers,
		stopCh:   make(chan struct{}),
		tripped:  make(map[string]bool),
	}
}

// Start begins collecting on a 15s tick, matching the teacher's
// collector interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
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

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectWorkerMetrics()
	c.collectBreakerMetrics()
}

func (c *Collector) collectWorkerMetrics() {
	if c.reg == nil {
		return
	}
	workers := c.reg.List()

	statusCounts := make(map[types.WorkerStatus]int)
	healthCounts := make(map[types.HealthState]int)

	for _, w := range workers {
		statusCounts[w.Status]++
		if w.Status == types.WorkerStatusRunning {
			healthCounts[w.Health]++
		}
	}

	for status, count := range statusCounts {
		WorkersTotal.WithLabelValues(string(status)).Set(float64(count))
	}
	for health, count := range healthCounts {
		WorkersByHealth.WithLabelValues(string(health)).Set(float64(count))
	}
}

func (c *Collector) collectBreakerMetrics() {
	if c.breakers == nil {
		return
	}
	for _, b := range c.breakers.All() {
		state := string(b.State())
		BreakerState.WithLabelValues(b.Name()).Set(BreakerStateValue(state))

		wasOpen := c.tripped[b.Name()]
		isOpen := state == "open"
		if isOpen && !wasOpen {
			BreakerTripsTotal.WithLabelValues(b.Name()).Inc()
		}
		c.tripped[b.Name()] = isOpen
	}
}
