// Package web provides the HTTP surface for validation and healing jobs.
package web

import (
	"encoding/json"

	"github.com/remedyhq/remedy/pkg/models"
)

// ValidateResponse is the synchronous validation verdict for a document.
type ValidateResponse struct {
	Valid  bool                     `json:"valid"`
	Errors []models.ValidationError `json:"errors"`
}

// HealRequest represents the request body for enqueueing a healing job.
// The workflow is kept raw so the schema gate sees the original bytes.
type HealRequest struct {
	UserID   string          `json:"user_id"  validate:"omitempty,min=1"`
	Workflow json.RawMessage `json:"workflow" validate:"required"`
}

// HealAcceptedResponse acknowledges an enqueued healing job.
type HealAcceptedResponse struct {
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	ErrorCount  int                    `json:"error_count"`
}
