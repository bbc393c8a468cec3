// Package persistence provides the storage abstraction for execution records
// and healing provenance.
package persistence

import (
	"context"
	"time"

	"github.com/remedyhq/remedy/pkg/models"
)

// Persistence is the storage entry point handed to services and workers.
type Persistence interface {
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ExecutionRepository stores execution records. Status updates are keyed
// upserts so a worker retrying after a crash mid-job can safely repeat them.
type ExecutionRepository interface {
	GetByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error)
	Save(ctx context.Context, record *models.ExecutionRecord) error

	// UpdateStatus upserts status and validation progress for an execution.
	// It is idempotent under concurrent worker retries.
	UpdateStatus(ctx context.Context, executionID string, status models.ExecutionStatus, progress map[string]any) error

	// SaveResult persists a healing outcome: provenance always, the healed
	// workflow only when the run succeeded.
	SaveResult(ctx context.Context, executionID string, result models.HealingResult) error

	// Stats aggregates healing outcomes for executions updated since the
	// given time.
	Stats(ctx context.Context, since time.Time) (*models.HealingStats, error)
}
