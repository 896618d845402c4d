package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Techtrust201/cannes-one-pass/internal/metrics"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/store"
)

// OccupancyCollector periodically counts accreditations per zone and status
// and publishes the counts as gauges. An interval of 0 disables it.
type OccupancyCollector struct {
	store    store.Store
	metrics  *metrics.Metrics
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewOccupancyCollector(s store.Store, m *metrics.Metrics, interval time.Duration, logger *slog.Logger) *OccupancyCollector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OccupancyCollector{
		store:    s,
		metrics:  m,
		interval: interval,
		logger:   logger.With("component", "occupancy"),
		done:     make(chan struct{}),
	}
}

// Start collects once immediately, then on every tick until ctx is
// cancelled or Stop is called.
func (c *OccupancyCollector) Start(ctx context.Context) {
	if c.interval <= 0 || c.metrics == nil {
		c.logger.Info("occupancy collector disabled")
		close(c.done)
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	go c.loop(ctx)

	c.logger.Info("occupancy collector started", "interval", c.interval)
}

// Stop signals the loop to exit and waits for it.
func (c *OccupancyCollector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
}

func (c *OccupancyCollector) loop(ctx context.Context) {
	defer close(c.done)

	c.Collect(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect runs one refresh. Failures are logged and the previous gauges
// are kept.
func (c *OccupancyCollector) Collect(ctx context.Context) {
	rows, err := c.store.Occupancy(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("occupancy query failed", "err", err)
		}
		return
	}

	counts := make(map[[2]string]int, len(rows))
	for _, r := range rows {
		z := string(r.Zone)
		if z == "" {
			z = "none"
		}
		counts[[2]string{z, string(r.Status)}] += r.Count
	}
	c.metrics.SetOccupancy(counts)
}
