// Package store persists run history. The latest-status file consumed by
// the API layer lives in internal/status; this store keeps the full record
// of every run.
package store

import "context"

// Store defines the run-history persistence contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// CreateRun records a run entering the running state.
	CreateRun(ctx context.Context, run *Run) error
	// FinishRun marks a run terminal with its outcome.
	FinishRun(ctx context.Context, id string, update RunUpdate) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
