package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/payroll/internal/core/domain"
	"github.com/vietddude/payroll/internal/infra/storage"
)

// AttemptRepo keeps the attempt ledger in process memory.
type AttemptRepo struct {
	mu       sync.RWMutex
	attempts map[string]*domain.Attempt
}

func NewAttemptRepo() *AttemptRepo {
	return &AttemptRepo{
		attempts: make(map[string]*domain.Attempt),
	}
}

func (r *AttemptRepo) Save(ctx context.Context, attempt *domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[attempt.ID] = attempt.Clone()
	return nil
}

func (r *AttemptRepo) Get(ctx context.Context, id string) (*domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, storage.ErrAttemptNotFound
	}
	return a.Clone(), nil
}

func (r *AttemptRepo) List(ctx context.Context, filter storage.AttemptFilter) ([]*domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Attempt, 0, len(r.attempts))
	for _, a := range r.attempts {
		if filter.ChainID != "" && a.ChainID != filter.ChainID {
			continue
		}
		if filter.Phase != "" && a.Phase != filter.Phase {
			continue
		}
		out = append(out, a.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *AttemptRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, a := range r.attempts {
		if a.Phase.Terminal() && a.UpdatedAt.Before(cutoff) {
			delete(r.attempts, id)
			n++
		}
	}
	return n, nil
}
