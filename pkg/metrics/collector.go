package metrics

import "time"

// QueueStats is the minimal view of the Job Queue the Collector polls.
// Satisfied by *pkg/queue.Queue.
type QueueStats interface {
	Depth() int
	RunningCount() int
}

// Collector periodically snapshots queue depth into the corresponding
// gauges. Counters (enqueued/completed/failed/...) are updated inline by
// pkg/queue, pkg/orchestrator, and pkg/registry at the point each event
// happens; this collector only covers values that are cheapest to sample
// on a tick rather than push on every mutation.
type Collector struct {
	queue  QueueStats
	stopCh chan struct{}
}

// NewCollector creates a metrics collector polling queue state.
func NewCollector(queue QueueStats) *Collector {
	return &Collector{
		queue:  queue,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s tick.
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
	if c.queue != nil {
		QueueDepth.Set(float64(c.queue.Depth()))
		JobsRunning.Set(float64(c.queue.RunningCount()))
	}
}
