package core

// scheduler.go runs background maintenance for the run history.
//
// Stores that support it are pruned periodically: runs older than the
// retention window are deleted. The job runs once at start and then every
// interval until the context is cancelled. A failed pass is logged and
// retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is implemented by history stores that can delete old runs.
type Pruner interface {
	// Prune deletes runs started before cutoff and returns how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig controls history pruning.
type RetentionConfig struct {
	// Days of history to keep. Zero disables pruning.
	Days     int
	Interval time.Duration
}

// StartHistoryPruner prunes the service's history store until ctx is done.
// It returns immediately when the store cannot prune or retention is off.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg RetentionConfig) {
	p, ok := s.history.(Pruner)
	if !ok || cfg.Days <= 0 {
		return
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	slog.Info("history pruner started", "retention_days", cfg.Days, "interval", cfg.Interval)
	runPrune(ctx, p, cfg.Days, time.Now)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			runPrune(ctx, p, cfg.Days, time.Now)
		}
	}
}

func runPrune(ctx context.Context, p Pruner, days int, now func() time.Time) {
	start := time.Now()
	cutoff := now().AddDate(0, 0, -days)

	n, err := p.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned run history",
		"runs_deleted", n,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
