package worker

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/segura08m/InnerNode/internal/infra/storage"
	"github.com/segura08m/InnerNode/internal/metrics"
)

// Pruner deletes dead letters past their retention period. Checkpoints are
// one row per chain and never pruned; dead letters are the only stored data
// that grows without bound.
type Pruner struct {
	retention   time.Duration
	chainID     uint64
	deadLetters storage.DeadLetterRepository
	log         *slog.Logger
}

func NewPruner(retention time.Duration, chainID uint64, deadLetters storage.DeadLetterRepository, log *slog.Logger) *Pruner {
	return &Pruner{
		retention:   retention,
		chainID:     chainID,
		deadLetters: deadLetters,
		log:         log.With("component", "pruner"),
	}
}

// Run prunes once, then keeps pruning on an interval until the context is
// canceled. It always returns nil; prune failures are logged and retried on
// the next pass, never fatal.
func (p *Pruner) Run(ctx context.Context) error {
	if p.retention <= 0 {
		return nil
	}

	ticker := time.NewTicker(checkInterval(p.retention))
	defer ticker.Stop()

	p.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	removed, err := p.deadLetters.DeleteOlderThan(ctx, p.chainID, cutoff)
	if err != nil {
		p.log.Warn("failed to prune dead letters", "error", err)
		return
	}
	if removed > 0 {
		metrics.DeadLettersPruned.WithLabelValues(strconv.FormatUint(p.chainID, 10)).Add(float64(removed))
		p.log.Info("pruned dead letters", "removed", removed, "cutoff", cutoff)
	}
}

// checkInterval derives how often to look for expired entries: a tenth of
// the retention period, clamped to [1 minute, 1 hour].
func checkInterval(retention time.Duration) time.Duration {
	interval := min(retention/10, time.Hour)
	return max(interval, time.Minute)
}
