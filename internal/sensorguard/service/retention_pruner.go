package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/metrics"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/store"
)

// RetentionPruner periodically deletes access logs older than a configurable
// retention period and drops idle classifier windows. Daily summaries and
// per-app stats are kept: they are the long-term record once raw logs age
// out.
//
// A retention of 0 disables log pruning entirely.
type RetentionPruner struct {
	logs       store.AccessLogStore
	classifier *Classifier
	retention  time.Duration
	interval   time.Duration
	clock      Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cancel     context.CancelFunc
	done       chan struct{}
}

// PrunerConfig holds the parameters for NewRetentionPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of access logs to keep.
	// 0 means keep everything.
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewRetentionPruner creates a pruner but does not start it.
// Call Start to begin the background loop.
func NewRetentionPruner(logs store.AccessLogStore, c *Classifier, cfg PrunerConfig, logger *slog.Logger, m *metrics.Metrics) *RetentionPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &RetentionPruner{
		logs:       logs,
		classifier: c,
		retention:  time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:   interval,
		clock:      systemClock{},
		logger:     logger,
		metrics:    m,
		done:       make(chan struct{}),
	}
}

// SetClock replaces the time source. Call before Start.
func (p *RetentionPruner) SetClock(c Clock) { p.clock = c }

// Start begins the background pruning loop. It runs an immediate prune
// on startup, then repeats on the configured interval. The loop exits
// when ctx is cancelled or Stop is called.
func (p *RetentionPruner) Start(ctx context.Context) {
	if p.retention <= 0 && p.classifier == nil {
		p.logger.Info("retention pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Info("retention pruner started",
		"retention_days", int(p.retention.Hours()/24), "interval", p.interval)
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *RetentionPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *RetentionPruner) loop(ctx context.Context) {
	defer close(p.done)

	// Run immediately on startup to clean up any backlog.
	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs a single pruning pass and returns the number of log rows
// deleted.
func (p *RetentionPruner) PruneOnce(ctx context.Context) int64 {
	now := p.clock.Now()
	if p.classifier != nil {
		if n := p.classifier.Prune(now); n > 0 {
			p.logger.Debug("classifier windows pruned", "keys", n)
		}
	}
	if p.retention <= 0 {
		return 0
	}

	cutoff := now.Add(-p.retention)
	deleted, err := p.logs.PruneLogsOlderThan(ctx, cutoff)
	if err != nil {
		p.metrics.PersistFailed("prune_logs")
		p.logger.Error("access log prune failed", "error", err)
		return 0
	}
	p.metrics.LogsPruned(deleted)
	if deleted > 0 {
		p.logger.Info("access log pruned", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
