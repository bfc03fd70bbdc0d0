package storage

import (
	"context"

	"github.com/percyitchy/xleaderboard/pkg/types"
)

// Storage is the interface for execution history.
type Storage interface {
	// StoreExecution stores a finished execution session.
	StoreExecution(ctx context.Context, record *types.ExecutionRecord) error

	// RecentExecutions returns up to limit records, newest first.
	RecentExecutions(ctx context.Context, limit int) ([]*types.ExecutionRecord, error)

	// Close closes the storage connection.
	Close() error
}
