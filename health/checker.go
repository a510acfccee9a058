package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// storeComponent is the monitor key for the credential store.
const storeComponent = "store"

// StoreChecker pings the credential store on an interval and feeds the
// result into the monitor and, when provided, a Prometheus gauge.
type StoreChecker struct {
	store    storage.Store
	monitor  *Monitor
	logger   *slog.Logger
	gauge    prometheus.Gauge
	interval time.Duration
	timeout  time.Duration
}

// NewStoreChecker creates a checker. gauge may be nil; interval and
// timeout fall back to 15s and 5s when zero.
func NewStoreChecker(store storage.Store, monitor *Monitor, logger *slog.Logger,
	gauge prometheus.Gauge, interval, timeout time.Duration) *StoreChecker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &StoreChecker{
		store:    store,
		monitor:  monitor,
		logger:   logger.With("component", "health"),
		gauge:    gauge,
		interval: interval,
		timeout:  timeout,
	}
}

// Run checks immediately, then on every interval tick until ctx ends.
func (c *StoreChecker) Run(ctx context.Context) {
	c.check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *StoreChecker) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn("store ping failed", "error", err)
		c.monitor.UpdateUnhealthy(storeComponent, err.Error())
		if c.gauge != nil {
			c.gauge.Set(0)
		}
		return
	}

	c.monitor.UpdateHealthy(storeComponent, "store reachable")
	if c.gauge != nil {
		c.gauge.Set(1)
	}
}
