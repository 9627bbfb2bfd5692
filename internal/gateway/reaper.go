package gateway

import (
	"context"
	"log"
	"time"

	"parley/internal/observability"
)

// Reaper periodically evicts connections that have gone quiet. A connection
// counts as quiet when nothing, not even a ping, has arrived within the
// idle timeout.
type Reaper struct {
	registry    *Registry
	interval    time.Duration
	idleTimeout time.Duration
	metrics     *observability.Metrics
	now         func() time.Time
	logf        func(format string, args ...any)
}

func NewReaper(registry *Registry, interval, idleTimeout time.Duration, metrics *observability.Metrics) *Reaper {
	return &Reaper{
		registry:    registry,
		interval:    interval,
		idleTimeout: idleTimeout,
		metrics:     metrics,
		now:         time.Now,
		logf:        log.Printf,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	evicted := r.registry.SweepIdle(r.now(), r.idleTimeout)
	for _, t := range evicted {
		_ = t.Sender.Close()
		r.metrics.ConnectionClosed()
		r.logf("gateway: evicted idle connection %s", t.ID)
	}
	if len(evicted) > 0 {
		r.metrics.AddEvictions(len(evicted))
	}
}
