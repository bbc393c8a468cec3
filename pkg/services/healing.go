package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/remedyhq/remedy/pkg/eventbus"
	"github.com/remedyhq/remedy/pkg/events"
	"github.com/remedyhq/remedy/pkg/healing"
	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/persistence"
	"github.com/remedyhq/remedy/pkg/validation"
)

// Healing coordinates the validate → heal → re-validate pipeline: it owns
// execution record transitions and the job events, while the engine owns the
// document repairs.
type Healing struct {
	persistence persistence.Persistence
	validator   *validation.Validator
	engine      *healing.Engine
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewHealing creates a new healing service.
func NewHealing(
	persistence persistence.Persistence,
	validator *validation.Validator,
	engine *healing.Engine,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Healing {
	return &Healing{
		persistence: persistence,
		validator:   validator,
		engine:      engine,
		publisher:   publisher,
		logger:      logger.With("module", "healing_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (h *Healing) HealthCheck(ctx context.Context) (string, bool) {
	if h.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := h.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Validate runs the full three-layer validation pass over a workflow.
func (h *Healing) Validate(ctx context.Context, workflow *models.Workflow) models.ValidationResult {
	return h.validator.Validate(ctx, workflow, validation.Options{})
}

// EnqueueHealing persists a queued execution record and publishes a healing
// job for it.
func (h *Healing) EnqueueHealing(ctx context.Context, executionID, userID string, workflow *models.Workflow, errs []models.ValidationError) error {
	if executionID == "" {
		return NewValidationError("enqueue_healing", "empty_execution_id", "execution ID is required", ErrEmptyExecutionID)
	}

	if workflow == nil {
		return NewValidationError("enqueue_healing", "workflow_nil", "workflow document is required", ErrWorkflowNil)
	}

	record := &models.ExecutionRecord{
		ExecutionID: executionID,
		UserID:      userID,
		Status:      models.ExecutionStatusQueued,
		Workflow:    workflow,
		Errors:      errs,
	}

	err := h.persistence.ExecutionRepository().Save(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", executionID, err)
	}

	event := events.HealingRequested{
		BaseEvent: events.NewBaseEvent(events.HealingRequestedEvent, executionID),
		UserID:    userID,
		Layer:     dominantLayer(errs),
		Errors:    errs,
	}

	err = h.publisher.Publish(ctx, executionID, event)
	if err != nil {
		return fmt.Errorf("failed to publish healing request for execution %s: %w", executionID, err)
	}

	h.logger.InfoContext(ctx, "Healing job enqueued",
		"execution_id", executionID,
		"error_count", len(errs))

	return nil
}

// ProcessHealing runs one healing job end to end: status transitions,
// engine run, provenance, and the follow-up events. Healed workflows are
// re-submitted through validation.requested rather than trusted directly.
func (h *Healing) ProcessHealing(ctx context.Context, workerID, executionID string) (models.HealingResult, error) {
	if executionID == "" {
		return models.HealingResult{}, NewValidationError("process_healing", "empty_execution_id", "execution ID is required", ErrEmptyExecutionID)
	}

	repo := h.persistence.ExecutionRepository()

	record, err := repo.GetByID(ctx, executionID)
	if err != nil {
		return models.HealingResult{}, fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	err = repo.UpdateStatus(ctx, executionID, models.ExecutionStatusAutoHealing, map[string]any{
		"stage":     "auto_healing",
		"worker_id": workerID,
	})
	if err != nil {
		return models.HealingResult{}, fmt.Errorf("failed to mark execution %s auto_healing: %w", executionID, err)
	}

	errs := record.Errors
	if len(errs) == 0 {
		// Queued without a stored error list: run a fresh pass.
		errs = h.validator.Validate(ctx, record.Workflow, validation.Options{SkipDeploymentTest: true}).Errors
	}

	result := h.engine.Heal(ctx, executionID, record.Workflow, errs)

	err = repo.SaveResult(ctx, executionID, result)
	if err != nil {
		return result, fmt.Errorf("failed to persist healing result for execution %s: %w", executionID, err)
	}

	h.publishOutcome(ctx, workerID, executionID, record.UserID, result)

	return result, nil
}

// GetExecution returns the execution record for an ID.
func (h *Healing) GetExecution(ctx context.Context, executionID string) (*models.ExecutionRecord, error) {
	if executionID == "" {
		return nil, NewValidationError("get_execution", "empty_execution_id", "execution ID is required", ErrEmptyExecutionID)
	}

	return h.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// Stats aggregates healing outcomes since the given time.
func (h *Healing) Stats(ctx context.Context, since time.Time) (*models.HealingStats, error) {
	return h.persistence.ExecutionRepository().Stats(ctx, since)
}

func (h *Healing) publishOutcome(ctx context.Context, workerID, executionID, userID string, result models.HealingResult) {
	if result.Success {
		completed := events.HealingCompleted{
			BaseEvent:    events.NewBaseEvent(events.HealingCompletedEvent, executionID),
			AppliedFixes: result.AppliedFixes,
			Confidence:   result.Confidence,
		}
		completed.WorkerID = workerID

		if err := h.publisher.Publish(ctx, executionID, completed); err != nil {
			h.logger.ErrorContext(ctx, "Failed to publish healing completed event",
				"execution_id", executionID, "error", err)
		}

		revalidate := events.ValidationRequested{
			BaseEvent:         events.NewBaseEvent(events.ValidationRequestedEvent, executionID),
			Workflow:          result.Workflow,
			UserID:            userID,
			RetryAfterHealing: true,
		}
		revalidate.WorkerID = workerID

		if err := h.publisher.Publish(ctx, executionID, revalidate); err != nil {
			h.logger.ErrorContext(ctx, "Failed to publish re-validation request",
				"execution_id", executionID, "error", err)
		}

		return
	}

	failed := events.HealingFailed{
		BaseEvent:       events.NewBaseEvent(events.HealingFailedEvent, executionID),
		AppliedFixes:    result.AppliedFixes,
		RemainingErrors: result.RemainingErrors,
	}
	failed.WorkerID = workerID

	if err := h.publisher.Publish(ctx, executionID, failed); err != nil {
		h.logger.ErrorContext(ctx, "Failed to publish healing failed event",
			"execution_id", executionID, "error", err)
	}
}

// dominantLayer picks the layer of the most severe error for the job event.
func dominantLayer(errs []models.ValidationError) models.Layer {
	var (
		layer models.Layer
		best  = -1
	)

	for _, verr := range errs {
		if rank := verr.Severity.Rank(); rank > best {
			best = rank
			layer = verr.Layer
		}
	}

	return layer
}
