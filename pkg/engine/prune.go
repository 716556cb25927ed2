package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunPruner deletes runs created before a cutoff.
type RunPruner interface {
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionConfig controls how long runs are kept.
type RetentionConfig struct {
	Enabled       bool
	MaxAge        time.Duration
	CheckInterval time.Duration
}

type PruneWorker struct {
	store  RunPruner
	config RetentionConfig
	logger *slog.Logger
	now    func() time.Time
	mu     sync.RWMutex
}

func NewPruneWorker(st RunPruner, cfg RetentionConfig, logger *slog.Logger) *PruneWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneWorker{
		store:  st,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (w *PruneWorker) UpdateConfig(cfg RetentionConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

// Run prunes once immediately and then on every check interval until ctx
// is done.
func (w *PruneWorker) Run(ctx context.Context) {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if !cfg.Enabled || cfg.MaxAge <= 0 {
		w.logger.Info("run pruning disabled")
		return
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = time.Hour
	}

	w.logger.Info("starting prune worker", "interval", interval, "max_age", cfg.MaxAge)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("prune worker stopping")
			return
		case <-ticker.C:
			w.Prune(ctx)
		}
	}
}

// Prune deletes the runs older than the configured max age and returns
// how many were removed.
func (w *PruneWorker) Prune(ctx context.Context) int64 {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if !cfg.Enabled || cfg.MaxAge <= 0 {
		return 0
	}

	cutoff := w.now().Add(-cfg.MaxAge)
	deleted, err := w.store.PruneRuns(ctx, cutoff)
	if err != nil {
		w.logger.Error("prune failed", "error", err)
		return 0
	}
	if deleted > 0 {
		ThermonetRunsPruned.Add(float64(deleted))
		w.logger.Info("pruned runs", "count", deleted, "older_than", cutoff)
	}
	return deleted
}
