package metrics

import (
	"context"
	"time"
)

// QueueLener reports the current length of a named queue.
type QueueLener interface {
	QueueLen(ctx context.Context, queue string) (int64, error)
}

// Collector samples queue depths on an interval and exports them through
// the QueueDepth gauge.
type Collector struct {
	store    QueueLener
	queues   []string
	interval time.Duration
}

// NewCollector creates a queue depth collector for the named queues.
func NewCollector(store QueueLener, queues []string, interval time.Duration) *Collector {
	return &Collector{
		store:    store,
		queues:   queues,
		interval: interval,
	}
}

// Run samples until ctx is cancelled. Sampling errors are silently skipped;
// the gauge just keeps its last value.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.sample(ctx)
		}
	}
}

func (c *Collector) sample(ctx context.Context) {
	for _, q := range c.queues {
		depth, err := c.store.QueueLen(ctx, q)
		if err != nil {
			continue
		}
		QueueDepth.WithLabelValues(q).Set(float64(depth))
	}
}
