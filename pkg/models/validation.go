package models

// Layer identifies which validation pass produced an error.
type Layer string

const (
	LayerStructure     Layer = "structure"
	LayerBusiness      Layer = "business"
	LayerCompatibility Layer = "compatibility"
)

// Severity ranks a validation error for healing prioritization.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank maps a severity onto a sortable weight, highest first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Stable validation error codes shared between validators and healing strategies.
const (
	ErrorTypeRequired           = "required"
	ErrorTypeMinLength          = "minLength"
	ErrorTypeInvalidPosition    = "invalid_position"
	ErrorTypeDuplicateNodeIDs   = "duplicate_node_ids"
	ErrorTypeOrphanedNodes      = "orphaned_nodes"
	ErrorTypeCircularDependency = "circular_dependency"
	ErrorTypeInvalidConnection  = "invalid_connection"
	ErrorTypeForbiddenNodeType  = "forbidden_node_type"
)

// ValidationError is one finding from a validation pass. Instances are created
// fresh on every pass and never mutated; re-validation supersedes the whole list.
type ValidationError struct {
	Layer    Layer    `json:"layer"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Severity Severity `json:"severity"`
	Fixable  bool     `json:"fixable"`

	// Nodes carries the offending node names for aggregate errors: all
	// duplicates or orphans, or the ordered node sequence of a cycle.
	Nodes []string `json:"nodes,omitempty"`
}

// ValidationResult is the orchestrator's single contract: Valid is true iff
// the concatenated error list from all three layers is empty.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}
