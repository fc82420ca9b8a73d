package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/payroll/internal/core/domain"
)

var (
	// ErrAttemptNotFound is returned when an attempt doesn't exist
	ErrAttemptNotFound = errors.New("attempt not found")
)

// AttemptRepository is the ledger of payment attempts.
type AttemptRepository interface {
	// Save inserts or updates an attempt by ID
	Save(ctx context.Context, attempt *domain.Attempt) error

	// Get retrieves an attempt by ID
	Get(ctx context.Context, id string) (*domain.Attempt, error)

	// List returns the most recent attempts, newest first
	List(ctx context.Context, filter AttemptFilter) ([]*domain.Attempt, error)

	// DeleteFinishedBefore removes completed and failed attempts last updated
	// before cutoff and returns how many were removed
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AttemptFilter narrows List results. Zero values mean no constraint.
type AttemptFilter struct {
	ChainID domain.ChainID
	Phase   domain.Phase
	Limit   int
}
