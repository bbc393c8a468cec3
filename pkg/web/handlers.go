package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/services"
	"github.com/remedyhq/remedy/pkg/validation"
)

const defaultStatsWindow = 24 * time.Hour

type APIHandlers struct {
	healingService *services.Healing
	schemaGate     *validation.SchemaGate
	validator      *validator.Validate
}

func NewAPIHandlers(
	healingService *services.Healing,
	schemaGate *validation.SchemaGate,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		healingService: healingService,
		schemaGate:     schemaGate,
		validator:      validator,
	}
}

// ValidateWorkflow runs the schema gate and the three-layer validation pass
// over the raw document in the request body.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	raw := c.Body()
	if len(raw) == 0 {
		return badRequest(c, "Request body is required")
	}

	schemaErrs, err := h.schemaGate.Check(raw)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	// Top-level shape violations make typed decoding unreliable; report them
	// without running the graph validators.
	if len(schemaErrs) > 0 {
		return c.JSON(ValidateResponse{Valid: false, Errors: schemaErrs})
	}

	var workflow models.Workflow
	if err := json.Unmarshal(raw, &workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result := h.healingService.Validate(c.Context(), &workflow)

	return c.JSON(ValidateResponse{Valid: result.Valid, Errors: result.Errors})
}

// HealExecution validates the document and enqueues a healing job for it. A
// document that is already valid is acknowledged without queueing anything.
func (h *APIHandlers) HealExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		executionID = uuid.New().String()
	}

	var req HealRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	schemaErrs, err := h.schemaGate.Check(req.Workflow)
	if err != nil {
		return badRequest(c, "Invalid workflow JSON")
	}

	var workflow models.Workflow
	if err := json.Unmarshal(req.Workflow, &workflow); err != nil && len(schemaErrs) == 0 {
		return badRequest(c, "Invalid workflow JSON")
	}

	result := h.healingService.Validate(c.Context(), &workflow)

	errs := append(schemaErrs, result.Errors...)
	if len(errs) == 0 {
		return c.JSON(ValidateResponse{Valid: true, Errors: []models.ValidationError{}})
	}

	err = h.healingService.EnqueueHealing(c.Context(), executionID, req.UserID, &workflow, dedupeErrors(errs))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(HealAcceptedResponse{
		ExecutionID: executionID,
		Status:      models.ExecutionStatusQueued,
		ErrorCount:  len(dedupeErrors(errs)),
	})
}

// GetExecution returns one execution record with its healing provenance.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	executionID := c.Params("id")
	if executionID == "" {
		return badRequest(c, "Execution ID is required")
	}

	record, err := h.healingService.GetExecution(c.Context(), executionID)
	if err != nil {
		if services.IsNotFoundError(err) {
			return notFound(c, "Execution not found")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

// GetStats returns aggregated healing statistics. The window defaults to the
// last 24 hours; `since` accepts an RFC 3339 timestamp.
func (h *APIHandlers) GetStats(c fiber.Ctx) error {
	since := time.Now().Add(-defaultStatsWindow)

	if sinceStr := c.Query("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return badRequest(c, "Invalid since timestamp, expected RFC 3339")
		}

		since = parsed
	}

	stats, err := h.healingService.Stats(c.Context(), since)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.healingService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Remedy API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Remedy API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// dedupeErrors drops schema-gate findings that the structural validator
// re-reports on the decoded document.
func dedupeErrors(errs []models.ValidationError) []models.ValidationError {
	type key struct {
		errType string
		path    string
	}

	seen := make(map[key]bool, len(errs))
	out := make([]models.ValidationError, 0, len(errs))

	for _, verr := range errs {
		k := key{errType: verr.Type, path: verr.Path}
		if seen[k] {
			continue
		}

		seen[k] = true

		out = append(out, verr)
	}

	return out
}
