package worker

import (
	"context"
	"log/slog"
	"time"
)

// AttemptPruner is the ledger surface the pruner needs.
type AttemptPruner interface {
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes finished payment attempts based on retention policy.
type Pruner struct {
	retention time.Duration
	repo      AttemptPruner
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker. A zero retention disables it.
func NewPruner(retention time.Duration, repo AttemptPruner) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the retention period, between one minute and one hour.
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

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
	cutoff := p.now().Add(-p.retention)

	n, err := p.repo.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune attempts", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("Pruned finished attempts", "count", n, "cutoff", cutoff.Format(time.RFC3339))
	}
}
