package journal

import (
	"context"
	"sync"
	"time"
)

// DefaultPruneInterval is used when the configured interval is not positive.
const DefaultPruneInterval = 6 * time.Hour

// Logger is the logging surface the pruner needs. *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pruner periodically deletes journal entries older than the retention
// period. A retention of zero disables pruning.
type Pruner struct {
	repo      Repository
	retention time.Duration
	interval  time.Duration
	logger    Logger
	now       func() time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// PrunerConfig holds the parameters for NewPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of history to keep. 0 keeps everything.
	RetentionDays int

	// Interval is how often the pruner runs. Defaults to 6h.
	Interval time.Duration
}

// NewPruner creates a pruner but does not start it.
func NewPruner(repo Repository, cfg PrunerConfig, logger Logger) *Pruner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pruner{
		repo:      repo,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("journal pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("journal pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval", p.interval.String(),
	)
}

// Stop signals the pruner to exit and waits for it. Stop must only be
// called after Start.
func (p *Pruner) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

// PruneNow runs a single prune pass and returns the number of rows removed.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().UTC().Add(-p.retention)
	return p.repo.PruneOlderThan(ctx, cutoff)
}

func (p *Pruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	deleted, err := p.PruneNow(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("journal prune failed", "error", err)
		}
		return
	}
	if deleted > 0 {
		p.logger.Info("journal pruned", "deleted", deleted)
	}
}
