package matchmaking

import (
	"context"
	"log/slog"
	"time"
)

// DefaultReapInterval is how often the Reaper sweeps the waiting pool.
const DefaultReapInterval = time.Minute

// Reaper evicts stale waiters on a fixed interval. Every sweep also audits
// the engine and heals it if an inconsistency slipped through.
type Reaper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

func NewReaper(engine *Engine, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &Reaper{engine: engine, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Reaper started", "interval", r.interval, "ttl", r.engine.ttl)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs a single eviction and audit pass.
func (r *Reaper) Sweep() {
	r.engine.Reap()
	if err := r.engine.Audit(); err != nil {
		r.logger.Warn("Healed matchmaking state", "error", err)
	}
}
