package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyhq/remedy/pkg/eventbus"
	"github.com/remedyhq/remedy/pkg/healing"
	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/persistence/file"
	"github.com/remedyhq/remedy/pkg/services"
	"github.com/remedyhq/remedy/pkg/validation"
	"github.com/remedyhq/remedy/pkg/web"
)

type noopPublisher struct{}

func (noopPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error { return nil }

func setupTestApp(t *testing.T) (*fiber.App, *services.Healing) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	v := validation.NewValidator()
	engine := healing.NewEngine(healing.NewRegistry(), v, logger)
	persistence := file.NewPersistence(t.TempDir())
	service := services.NewHealing(persistence, v, engine, noopPublisher{}, logger)

	schemaGate, err := validation.NewSchemaGate()
	require.NoError(t, err)

	handlers := web.NewAPIHandlers(service, schemaGate, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Post("/validate", handlers.ValidateWorkflow)
	app.Post("/executions/:id/heal", handlers.HealExecution)
	app.Get("/executions/:id", handlers.GetExecution)
	app.Get("/stats", handlers.GetStats)
	app.Get("/health", handlers.HealthCheck)

	return app, service
}

func postJSON(t *testing.T, app *fiber.App, path string, body []byte) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func validDocument() []byte {
	return []byte(`{
		"name": "Order sync",
		"nodes": [
			{"id": "node_1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "position": [250, 300]},
			{"id": "node_2", "name": "Set", "type": "n8n-nodes-base.set", "position": [450, 300]}
		],
		"connections": {
			"Webhook": {"main": [[{"node": "Set", "type": "main", "index": 0}]]}
		},
		"settings": {}
	}`)
}

func TestValidateWorkflow_Valid(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := postJSON(t, app, "/validate", validDocument())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateWorkflow_SchemaViolation(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, body := postJSON(t, app, "/validate", []byte(`{"connections": {}}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, models.LayerStructure, result.Errors[0].Layer)
}

func TestValidateWorkflow_GraphErrors(t *testing.T) {
	app, _ := setupTestApp(t)

	document := []byte(`{
		"name": "Looped",
		"nodes": [
			{"id": "a", "name": "A", "type": "n8n-nodes-base.set", "position": [0, 0]},
			{"id": "b", "name": "B", "type": "n8n-nodes-base.set", "position": [0, 0]}
		],
		"connections": {
			"A": {"main": [[{"node": "B", "type": "main", "index": 0}]]},
			"B": {"main": [[{"node": "A", "type": "main", "index": 0}]]}
		},
		"settings": {}
	}`)

	resp, body := postJSON(t, app, "/validate", document)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.False(t, result.Valid)

	types := make([]string, 0, len(result.Errors))
	for _, verr := range result.Errors {
		types = append(types, verr.Type)
	}

	assert.Contains(t, types, models.ErrorTypeCircularDependency)
}

func TestValidateWorkflow_InvalidJSON(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := postJSON(t, app, "/validate", []byte("not-json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateWorkflow_EmptyBody(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := postJSON(t, app, "/validate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealExecution_Enqueues(t *testing.T) {
	app, service := setupTestApp(t)

	payload, err := json.Marshal(map[string]any{
		"user_id": "user-1",
		"workflow": json.RawMessage(`{
			"name": "Broken",
			"nodes": [
				{"id": "", "name": "Set", "type": "n8n-nodes-base.set", "position": [0, 0]}
			],
			"connections": {},
			"settings": {}
		}`),
	})
	require.NoError(t, err)

	resp, body := postJSON(t, app, "/executions/exec-123/heal", payload)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted web.HealAcceptedResponse
	require.NoError(t, json.Unmarshal(body, &accepted))
	assert.Equal(t, "exec-123", accepted.ExecutionID)
	assert.Equal(t, models.ExecutionStatusQueued, accepted.Status)
	assert.Positive(t, accepted.ErrorCount)

	record, err := service.GetExecution(context.Background(), "exec-123")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusQueued, record.Status)
	assert.Equal(t, "user-1", record.UserID)
}

func TestHealExecution_AlreadyValid(t *testing.T) {
	app, _ := setupTestApp(t)

	payload, err := json.Marshal(map[string]any{
		"workflow": json.RawMessage(validDocument()),
	})
	require.NoError(t, err)

	resp, body := postJSON(t, app, "/executions/exec-ok/heal", payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result web.ValidateResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.True(t, result.Valid)
}

func TestHealExecution_MissingWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := postJSON(t, app, "/executions/exec-1/heal", []byte(`{"user_id": "user-1"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecution_NotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/executions/missing", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetExecution_ReturnsRecord(t *testing.T) {
	app, service := setupTestApp(t)
	ctx := context.Background()

	workflow := &models.Workflow{
		Name:        "Stored",
		Nodes:       []*models.Node{{ID: "n1", Name: "Webhook", Type: "n8n-nodes-base.webhook", Position: models.Position{0, 0}}},
		Connections: models.Connections{},
		Settings:    map[string]any{},
	}
	require.NoError(t, service.EnqueueHealing(ctx, "exec-stored", "user-2", workflow, []models.ValidationError{
		{Layer: models.LayerStructure, Type: models.ErrorTypeRequired, Path: "settings", Severity: models.SeverityCritical, Fixable: true},
	}))

	req := httptest.NewRequest(http.MethodGet, "/executions/exec-stored", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var record models.ExecutionRecord
	require.NoError(t, json.Unmarshal(respBody, &record))
	assert.Equal(t, "exec-stored", record.ExecutionID)
	assert.Equal(t, "user-2", record.UserID)
}

func TestGetStats(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var stats models.HealingStats
	require.NoError(t, json.Unmarshal(respBody, &stats))
	assert.Equal(t, 0, stats.Attempts)
}

func TestGetStats_BadSince(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/stats?since=yesterday", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(respBody), "healthy")
}
