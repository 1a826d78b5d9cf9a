package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// PrunerConfig configures retention enforcement.
type PrunerConfig struct {
	// RetentionDays is how long records are kept. Records older than
	// now minus this many days are deleted on each pruning run.
	RetentionDays int

	// Schedule is a standard cron expression, for example "0 3 * * *"
	// for daily at 3 AM. Empty disables scheduled pruning.
	Schedule string
}

// Pruner enforces the retention window on a cron schedule.
type Pruner struct {
	store  *Store
	config PrunerConfig
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	now     func() time.Time
}

// NewPruner builds a pruner over the store.
func NewPruner(store *Store, cfg PrunerConfig) *Pruner {
	return &Pruner{
		store:  store,
		config: cfg,
		cron:   cron.New(),
		logger: slog.Default().With("component", "audit.pruner"),
		now:    time.Now,
	}
}

// Prune deletes records older than the retention window and returns
// how many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
	return p.store.DeleteBefore(ctx, cutoff)
}

// Start schedules pruning per the configured cron expression. A nil
// error with no schedule configured means the pruner is a no-op. The
// scheduler stops when ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config.Schedule == "" {
		p.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(p.config.Schedule); err != nil {
		return fmt.Errorf("audit: invalid cron schedule %q: %w", p.config.Schedule, err)
	}

	_, err := p.cron.AddFunc(p.config.Schedule, func() {
		deleted, err := p.Prune(ctx)
		if err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
			return
		}
		if deleted > 0 {
			p.logger.Info("scheduled pruning completed", "deleted", deleted)
		}
	})
	if err != nil {
		return fmt.Errorf("audit: failed to schedule pruning: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.logger.Info("retention pruner started",
		"schedule", p.config.Schedule,
		"retention_days", p.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		<-p.cron.Stop().Done()
		p.running = false
		p.logger.Info("retention pruner stopped")
	}
}

// Running reports whether the scheduler is active.
func (p *Pruner) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
