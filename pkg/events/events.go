// Package events defines the job event types exchanged between the validation
// producer, the healing workers, and downstream consumers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/remedyhq/remedy/pkg/models"
)

type EventType string

// Topic is the shared event topic for validation and healing jobs.
const Topic = "remedy.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ValidationRequestedEvent asks the validation pipeline to run a full
	// pass over a workflow document. Healed workflows are always re-submitted
	// through this event rather than trusted directly.
	ValidationRequestedEvent EventType = "validation.requested"

	// HealingRequestedEvent enqueues one healing job for an execution whose
	// validation pass failed.
	HealingRequestedEvent EventType = "healing.requested"

	HealingCompletedEvent EventType = "healing.completed"
	HealingFailedEvent    EventType = "healing.failed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	WorkerID    string         `json:"worker_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}

type ValidationRequested struct {
	BaseEvent

	Workflow *models.Workflow `json:"workflow"`
	UserID   string           `json:"user_id"`

	// RetryAfterHealing marks re-validation of a healed workflow.
	RetryAfterHealing bool `json:"retry_after_healing"`
}

func (e ValidationRequested) GetType() EventType {
	return ValidationRequestedEvent
}

type HealingRequested struct {
	BaseEvent

	UserID string                   `json:"user_id"`
	Layer  models.Layer             `json:"layer"`
	Errors []models.ValidationError `json:"errors"`
}

func (e HealingRequested) GetType() EventType {
	return HealingRequestedEvent
}

type HealingCompleted struct {
	BaseEvent

	AppliedFixes []models.AppliedFix `json:"applied_fixes"`
	Confidence   float64             `json:"confidence"`
}

func (e HealingCompleted) GetType() EventType {
	return HealingCompletedEvent
}

type HealingFailed struct {
	BaseEvent

	AppliedFixes    []models.AppliedFix      `json:"applied_fixes"`
	RemainingErrors []models.ValidationError `json:"remaining_errors"`
}

func (e HealingFailed) GetType() EventType {
	return HealingFailedEvent
}
