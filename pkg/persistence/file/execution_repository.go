package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/persistence"
)

// ExecutionRepository handles execution record file operations. Each record
// is one JSON document under <root>/executions.
type ExecutionRepository struct {
	root string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

// validateExecutionID validates that the execution ID is safe for file operations.
func (er *ExecutionRepository) validateExecutionID(executionID string) error {
	if executionID == "" {
		return errors.New("execution ID cannot be empty")
	}

	// Check for path traversal attempts
	if strings.Contains(executionID, "..") || strings.Contains(executionID, "/") || strings.Contains(executionID, "\\") {
		return errors.New("execution ID contains invalid characters")
	}

	return nil
}

func (er *ExecutionRepository) executionsDir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) recordPath(executionID string) string {
	return filepath.Join(er.executionsDir(), executionID+".json")
}

// Save writes an execution record to the file system, overwriting any
// existing record with the same ID.
func (er *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	if err := er.validateExecutionID(record.ExecutionID); err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, err)
	}

	recordToSave := *record
	if recordToSave.CreatedAt.IsZero() {
		recordToSave.CreatedAt = time.Now().UTC()
	}

	recordToSave.UpdatedAt = time.Now().UTC()

	err := os.MkdirAll(er.executionsDir(), 0750)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to create executions directory: %w", err))
	}

	data, err := json.Marshal(recordToSave)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to marshal execution record: %w", err))
	}

	err = os.WriteFile(er.recordPath(record.ExecutionID), data, 0600)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to write execution record: %w", err))
	}

	return nil
}

// GetByID retrieves an execution record by its ID from the file system.
func (er *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	if err := er.validateExecutionID(executionID); err != nil {
		return nil, persistence.NewExecutionError("get", executionID, err)
	}

	data, err := os.ReadFile(er.recordPath(executionID)) // #nosec G304 -- path is validated and constructed safely
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("get", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("get", executionID, fmt.Errorf("failed to read execution record: %w", err))
	}

	var record models.ExecutionRecord

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, persistence.NewExecutionError("get", executionID, fmt.Errorf("failed to unmarshal execution record: %w", err))
	}

	return &record, nil
}

// UpdateStatus upserts status and validation progress for an execution.
// A record is created when none exists so workers retrying after a crash
// can repeat the update safely.
func (er *ExecutionRepository) UpdateStatus(ctx context.Context, executionID string, status models.ExecutionStatus, progress map[string]any) error {
	record, err := er.GetByID(ctx, executionID)
	if err != nil {
		if !persistence.IsExecutionNotFound(err) {
			return err
		}

		record = &models.ExecutionRecord{
			ExecutionID: executionID,
			CreatedAt:   time.Now().UTC(),
		}
	}

	record.Status = status
	if progress != nil {
		record.ValidationProgress = progress
	}

	return er.Save(ctx, record)
}

// SaveResult persists a healing outcome onto an existing execution record.
func (er *ExecutionRepository) SaveResult(ctx context.Context, executionID string, result models.HealingResult) error {
	record, err := er.GetByID(ctx, executionID)
	if err != nil {
		return err
	}

	record.AutoHealed = result.Healed
	record.AppliedFixes = result.AppliedFixes
	record.Errors = result.RemainingErrors

	if result.Success {
		record.Status = models.ExecutionStatusCompleted
		if result.Workflow != nil {
			record.Workflow = result.Workflow
		}
	} else {
		record.Status = models.ExecutionStatusFailed
	}

	return er.Save(ctx, record)
}

// Stats aggregates healing outcomes for executions updated since the given time.
func (er *ExecutionRepository) Stats(ctx context.Context, since time.Time) (*models.HealingStats, error) {
	stats := &models.HealingStats{CommonErrors: make(map[string]int)}

	if _, err := os.Stat(er.executionsDir()); os.IsNotExist(err) {
		return stats, nil
	}

	entries, err := os.ReadDir(er.executionsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		record, err := er.GetByID(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// Skip invalid files
			continue
		}

		if record.UpdatedAt.Before(since) {
			continue
		}

		if record.Status != models.ExecutionStatusCompleted && record.Status != models.ExecutionStatusFailed {
			continue
		}

		stats.Attempts++

		if record.Status == models.ExecutionStatusCompleted {
			stats.Successes++
		}

		for _, verr := range record.Errors {
			stats.CommonErrors[verr.Type]++
		}

		for _, fix := range record.AppliedFixes {
			stats.CommonErrors[fix.ErrorType]++
		}
	}

	if stats.Attempts > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.Attempts)
	}

	return stats, nil
}
