// Package store persists processed batches.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bankscan/internal/model"
)

// ErrNotFound is returned when a batch ID is unknown or no batch exists yet.
var ErrNotFound = eris.New("store: batch not found")

// defaultListLimit caps ListBatches when no limit is given.
const defaultListLimit = 100

// Store defines the persistence interface for batch results.
type Store interface {
	SaveBatch(ctx context.Context, batch *model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	LatestBatch(ctx context.Context) (*model.Batch, error)
	ListBatches(ctx context.Context, limit int) ([]model.BatchSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
