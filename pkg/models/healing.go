package models

import "time"

// Fix types recorded in healing provenance.
const (
	FixTypeAddDefault       = "add_default"
	FixTypeGenerateID       = "generate_id"
	FixTypeResetPosition    = "reset_position"
	FixTypeRenameDuplicate  = "rename_duplicate"
	FixTypeRemoveOrphan     = "remove_orphan"
	FixTypeBreakCycle       = "break_cycle"
	FixTypeRemoveConnection = "remove_connection"
	FixTypeReplaceNodeType  = "replace_node_type"
	FixTypeAIContextual     = "ai_contextual"
)

// AppliedFix is an immutable provenance record for one repair. Fixes are only
// ever appended to a healing run, never retracted.
type AppliedFix struct {
	ErrorType   string  `json:"error_type"`
	FixType     string  `json:"fix_type"`
	Description string  `json:"description"`
	Path        string  `json:"path,omitempty"`
	OldValue    any     `json:"old_value,omitempty"`
	NewValue    any     `json:"new_value,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// HealingResult is produced once per healing job and persisted verbatim.
// Workflow is present only when Success is true; a failed run never surfaces
// the unhealed document as if it were fixed.
type HealingResult struct {
	Success         bool              `json:"success"`
	Healed          bool              `json:"healed"`
	Workflow        *Workflow         `json:"workflow,omitempty"`
	AppliedFixes    []AppliedFix      `json:"applied_fixes"`
	RemainingErrors []ValidationError `json:"remaining_errors"`
	Confidence      float64           `json:"confidence"`
}

// ExecutionStatus is the persisted lifecycle state of one healing job.
type ExecutionStatus string

const (
	ExecutionStatusQueued      ExecutionStatus = "queued"
	ExecutionStatusAutoHealing ExecutionStatus = "auto_healing"
	ExecutionStatusCompleted   ExecutionStatus = "completed"
	ExecutionStatusFailed      ExecutionStatus = "failed"
)

// ExecutionRecord is the persisted state of one validate/heal execution.
// Workflow is overwritten only when healing succeeds.
type ExecutionRecord struct {
	ExecutionID        string            `json:"execution_id" validate:"required"`
	UserID             string            `json:"user_id"`
	Status             ExecutionStatus   `json:"status"`
	ValidationProgress map[string]any    `json:"validation_progress,omitempty"`
	Workflow           *Workflow         `json:"workflow_json,omitempty"`
	Errors             []ValidationError `json:"errors,omitempty"`
	AutoHealed         bool              `json:"auto_healed"`
	AppliedFixes       []AppliedFix      `json:"applied_fixes,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// HealingStats aggregates healing outcomes over a time window for the
// read-only statistics query.
type HealingStats struct {
	Attempts     int            `json:"attempts"`
	Successes    int            `json:"successes"`
	SuccessRate  float64        `json:"success_rate"`
	CommonErrors map[string]int `json:"common_errors"`
}
