package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/persistence"
)

// ExecutionRepository handles execution record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Save upserts an execution record.
func (er *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	progressJSON, err := json.Marshal(record.ValidationProgress)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to marshal validation progress: %w", err))
	}

	workflowJSON, err := json.Marshal(record.Workflow)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to marshal workflow: %w", err))
	}

	errorsJSON, err := json.Marshal(record.Errors)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to marshal errors: %w", err))
	}

	fixesJSON, err := json.Marshal(record.AppliedFixes)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to marshal applied fixes: %w", err))
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO executions (
			execution_id, user_id, status, validation_progress, workflow_json,
			errors, auto_healed, applied_fixes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (execution_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			status = EXCLUDED.status,
			validation_progress = EXCLUDED.validation_progress,
			workflow_json = EXCLUDED.workflow_json,
			errors = EXCLUDED.errors,
			auto_healed = EXCLUDED.auto_healed,
			applied_fixes = EXCLUDED.applied_fixes,
			updated_at = NOW()
	`

	_, err = er.db.ExecContext(ctx, query,
		record.ExecutionID,
		record.UserID,
		record.Status,
		progressJSON,
		workflowJSON,
		errorsJSON,
		record.AutoHealed,
		fixesJSON,
		createdAt,
	)
	if err != nil {
		return persistence.NewExecutionError("save", record.ExecutionID, fmt.Errorf("failed to save execution record: %w", err))
	}

	return nil
}

// GetByID retrieves an execution record by its ID.
func (er *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	query := `
		SELECT execution_id, user_id, status, validation_progress, workflow_json,
			   errors, auto_healed, applied_fixes, created_at, updated_at
		FROM executions
		WHERE execution_id = $1
	`

	row := er.db.QueryRowContext(ctx, query, executionID)

	record, err := er.scanExecutionRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("get", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("get", executionID, fmt.Errorf("failed to scan execution record: %w", err))
	}

	return record, nil
}

// UpdateStatus upserts status and validation progress for an execution. The
// upsert makes the update safe to repeat when a worker retries after a crash.
func (er *ExecutionRepository) UpdateStatus(ctx context.Context, executionID string, status models.ExecutionStatus, progress map[string]any) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return persistence.NewExecutionError("update_status", executionID, fmt.Errorf("failed to marshal validation progress: %w", err))
	}

	query := `
		INSERT INTO executions (execution_id, status, validation_progress, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status,
			validation_progress = COALESCE(EXCLUDED.validation_progress, executions.validation_progress),
			updated_at = NOW()
	`

	_, err = er.db.ExecContext(ctx, query, executionID, status, progressJSON)
	if err != nil {
		return persistence.NewExecutionError("update_status", executionID, fmt.Errorf("failed to update execution status: %w", err))
	}

	return nil
}

// SaveResult persists a healing outcome onto an existing execution record.
// The healed workflow is written only when the run succeeded.
func (er *ExecutionRepository) SaveResult(ctx context.Context, executionID string, result models.HealingResult) error {
	errorsJSON, err := json.Marshal(result.RemainingErrors)
	if err != nil {
		return persistence.NewExecutionError("save_result", executionID, fmt.Errorf("failed to marshal errors: %w", err))
	}

	fixesJSON, err := json.Marshal(result.AppliedFixes)
	if err != nil {
		return persistence.NewExecutionError("save_result", executionID, fmt.Errorf("failed to marshal applied fixes: %w", err))
	}

	status := models.ExecutionStatusFailed

	var workflowJSON []byte

	if result.Success {
		status = models.ExecutionStatusCompleted

		if result.Workflow != nil {
			workflowJSON, err = json.Marshal(result.Workflow)
			if err != nil {
				return persistence.NewExecutionError("save_result", executionID, fmt.Errorf("failed to marshal workflow: %w", err))
			}
		}
	}

	query := `
		UPDATE executions SET
			status = $2,
			errors = $3,
			auto_healed = $4,
			applied_fixes = $5,
			workflow_json = COALESCE($6, workflow_json),
			updated_at = NOW()
		WHERE execution_id = $1
	`

	res, err := er.db.ExecContext(ctx, query, executionID, status, errorsJSON, result.Healed, fixesJSON, workflowJSON)
	if err != nil {
		return persistence.NewExecutionError("save_result", executionID, fmt.Errorf("failed to save healing result: %w", err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("save_result", executionID, fmt.Errorf("failed to check affected rows: %w", err))
	}

	if affected == 0 {
		return persistence.NewExecutionError("save_result", executionID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// Stats aggregates healing outcomes for executions updated since the given time.
func (er *ExecutionRepository) Stats(ctx context.Context, since time.Time) (*models.HealingStats, error) {
	stats := &models.HealingStats{CommonErrors: make(map[string]int)}

	countQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed')
		FROM executions
		WHERE updated_at >= $1 AND status IN ('completed', 'failed')
	`

	err := er.db.QueryRowContext(ctx, countQuery, since).Scan(&stats.Attempts, &stats.Successes)
	if err != nil {
		return nil, fmt.Errorf("failed to query healing stats: %w", err)
	}

	if stats.Attempts > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.Attempts)
	}

	errorsQuery := `
		SELECT error_type, COUNT(*) FROM (
			SELECT jsonb_array_elements(errors)->>'type' AS error_type
			FROM executions
			WHERE updated_at >= $1 AND status IN ('completed', 'failed') AND jsonb_typeof(errors) = 'array'
			UNION ALL
			SELECT jsonb_array_elements(applied_fixes)->>'error_type' AS error_type
			FROM executions
			WHERE updated_at >= $1 AND status IN ('completed', 'failed') AND jsonb_typeof(applied_fixes) = 'array'
		) AS occurrences
		WHERE error_type IS NOT NULL
		GROUP BY error_type
	`

	rows, err := er.db.QueryContext(ctx, errorsQuery, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query common errors: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var (
			errorType string
			count     int
		)

		if err := rows.Scan(&errorType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan common error row: %w", err)
		}

		stats.CommonErrors[errorType] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating common errors: %w", err)
	}

	return stats, nil
}

// scanExecutionRecord scans an execution record from a database row.
func (er *ExecutionRepository) scanExecutionRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.ExecutionRecord, error) {
	var (
		record                                          models.ExecutionRecord
		userID                                          sql.NullString
		progressJSON, workflowJSON, errorsJSON, fixJSON []byte
	)

	err := scanner.Scan(
		&record.ExecutionID,
		&userID,
		&record.Status,
		&progressJSON,
		&workflowJSON,
		&errorsJSON,
		&record.AutoHealed,
		&fixJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.UserID = userID.String

	if progressJSON != nil {
		err := json.Unmarshal(progressJSON, &record.ValidationProgress)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal validation progress: %w", err)
		}
	}

	if workflowJSON != nil {
		err := json.Unmarshal(workflowJSON, &record.Workflow)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
		}
	}

	if errorsJSON != nil {
		err := json.Unmarshal(errorsJSON, &record.Errors)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal errors: %w", err)
		}
	}

	if fixJSON != nil {
		err := json.Unmarshal(fixJSON, &record.AppliedFixes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal applied fixes: %w", err)
		}
	}

	return &record, nil
}
