package file

import (
	"context"
	"testing"
	"time"

	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkflow() *models.Workflow {
	return &models.Workflow{
		Name: "Order sync",
		Nodes: []*models.Node{
			{
				ID:       "node_1",
				Name:     "Webhook",
				Type:     "n8n-nodes-base.webhook",
				Position: models.Position{250, 300},
			},
		},
		Connections: models.Connections{},
		Settings:    map[string]any{},
	}
}

func TestExecutionRepository_SaveAndGetByID(t *testing.T) {
	tempDir := t.TempDir()
	p := NewPersistence(tempDir)
	ctx := context.Background()

	record := &models.ExecutionRecord{
		ExecutionID: "exec-123",
		UserID:      "user-456",
		Status:      models.ExecutionStatusQueued,
		Workflow:    testWorkflow(),
	}

	repo := p.ExecutionRepository()
	err := repo.Save(ctx, record)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, "exec-123")
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, "exec-123", retrieved.ExecutionID)
	assert.Equal(t, "user-456", retrieved.UserID)
	assert.Equal(t, models.ExecutionStatusQueued, retrieved.Status)
	assert.False(t, retrieved.AutoHealed)
	require.NotNil(t, retrieved.Workflow)
	assert.Equal(t, "Order sync", retrieved.Workflow.Name)
	assert.False(t, retrieved.CreatedAt.IsZero())
	assert.False(t, retrieved.UpdatedAt.IsZero())
}

func TestExecutionRepository_GetByID_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.ExecutionRepository().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_GetByID_InvalidID(t *testing.T) {
	p := NewPersistence(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", "a\\b"} {
		_, err := p.ExecutionRepository().GetByID(context.Background(), id)
		assert.Error(t, err, "id %q should be rejected", id)
	}
}

func TestExecutionRepository_UpdateStatus_CreatesRecord(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()
	repo := p.ExecutionRepository()

	err := repo.UpdateStatus(ctx, "exec-new", models.ExecutionStatusAutoHealing, map[string]any{"layer": "business_logic"})
	require.NoError(t, err)

	record, err := repo.GetByID(ctx, "exec-new")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusAutoHealing, record.Status)
	assert.Equal(t, "business_logic", record.ValidationProgress["layer"])
}

func TestExecutionRepository_UpdateStatus_Idempotent(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-retry",
		UserID:      "user-1",
		Status:      models.ExecutionStatusQueued,
	}))

	// A worker retrying after a crash repeats the same transition.
	require.NoError(t, repo.UpdateStatus(ctx, "exec-retry", models.ExecutionStatusAutoHealing, nil))
	require.NoError(t, repo.UpdateStatus(ctx, "exec-retry", models.ExecutionStatusAutoHealing, nil))

	record, err := repo.GetByID(ctx, "exec-retry")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusAutoHealing, record.Status)
	assert.Equal(t, "user-1", record.UserID)
}

func TestExecutionRepository_SaveResult_Success(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-ok",
		Status:      models.ExecutionStatusAutoHealing,
	}))

	healed := testWorkflow()
	result := models.HealingResult{
		Success:  true,
		Healed:   true,
		Workflow: healed,
		AppliedFixes: []models.AppliedFix{
			{ErrorType: models.ErrorTypeRequired, FixType: models.FixTypeAddDefault, Confidence: 0.95},
		},
		Confidence: 0.95,
	}

	require.NoError(t, repo.SaveResult(ctx, "exec-ok", result))

	record, err := repo.GetByID(ctx, "exec-ok")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, record.Status)
	assert.True(t, record.AutoHealed)
	require.Len(t, record.AppliedFixes, 1)
	assert.Equal(t, models.FixTypeAddDefault, record.AppliedFixes[0].FixType)
	require.NotNil(t, record.Workflow)
	assert.Equal(t, "Order sync", record.Workflow.Name)
}

func TestExecutionRepository_SaveResult_Failure(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-bad",
		Status:      models.ExecutionStatusAutoHealing,
	}))

	result := models.HealingResult{
		Success: false,
		Healed:  false,
		RemainingErrors: []models.ValidationError{
			{Layer: models.LayerBusiness, Type: models.ErrorTypeCircularDependency, Severity: models.SeverityCritical},
		},
	}

	require.NoError(t, repo.SaveResult(ctx, "exec-bad", result))

	record, err := repo.GetByID(ctx, "exec-bad")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.False(t, record.AutoHealed)
	require.Len(t, record.Errors, 1)
	assert.Equal(t, models.ErrorTypeCircularDependency, record.Errors[0].Type)
}

func TestExecutionRepository_SaveResult_NotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	err := p.ExecutionRepository().SaveResult(context.Background(), "missing", models.HealingResult{})
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_Stats(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-1",
		Status:      models.ExecutionStatusCompleted,
		AppliedFixes: []models.AppliedFix{
			{ErrorType: models.ErrorTypeRequired, FixType: models.FixTypeAddDefault},
			{ErrorType: models.ErrorTypeInvalidPosition, FixType: models.FixTypeResetPosition},
		},
	}))
	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-2",
		Status:      models.ExecutionStatusFailed,
		Errors: []models.ValidationError{
			{Type: models.ErrorTypeCircularDependency},
		},
	}))
	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-3",
		Status:      models.ExecutionStatusQueued,
	}))

	stats, err := repo.Stats(ctx, time.Time{})
	require.NoError(t, err)

	// Queued executions do not count as attempts.
	assert.Equal(t, 2, stats.Attempts)
	assert.Equal(t, 1, stats.Successes)
	assert.InDelta(t, 0.5, stats.SuccessRate, 0.001)
	assert.Equal(t, 1, stats.CommonErrors[models.ErrorTypeRequired])
	assert.Equal(t, 1, stats.CommonErrors[models.ErrorTypeCircularDependency])
}

func TestExecutionRepository_Stats_SinceWindow(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
		ExecutionID: "exec-old",
		Status:      models.ExecutionStatusCompleted,
	}))

	stats, err := repo.Stats(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Attempts)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestFilePersistence_HealthCheck(t *testing.T) {
	tempDir := t.TempDir()
	p := NewPersistence(tempDir)
	ctx := context.Background()

	require.NoError(t, p.HealthCheck(ctx))
	require.NoError(t, p.Close(ctx))

	missing := NewPersistence(tempDir + "/does-not-exist")
	assert.Error(t, missing.HealthCheck(ctx))
}
