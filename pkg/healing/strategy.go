// Package healing implements the strategy-based auto-repair engine that
// consumes validator findings and converges on a structurally valid workflow,
// or fails safely with full provenance.
package healing

import (
	"sync/atomic"

	"github.com/remedyhq/remedy/pkg/models"
)

// Strategy repairs one class of validation error. CanFix is a pure predicate;
// Fix returns a new document and never mutates its input in place.
type Strategy struct {
	Kind       string
	Confidence float64
	CanFix     func(verr models.ValidationError, workflow *models.Workflow) bool
	Fix        func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix)
}

// Registry is an ordered strategy table, evaluated in registration order. It
// is constructed explicitly and injected into the engine; there is no
// process-wide registry.
type Registry struct {
	strategies []Strategy
	idCounter  atomic.Int64
}

// NewRegistry returns a registry pre-loaded with the built-in repair
// strategies, ordered to match error priority.
func NewRegistry() *Registry {
	r := &Registry{}

	r.Register(r.missingRequiredProperty())
	r.Register(r.invalidNodeID())
	r.Register(r.invalidPosition())
	r.Register(r.duplicateNodeIDs())
	r.Register(r.forbiddenNodeType())
	r.Register(r.invalidConnection())
	r.Register(r.circularDependency())
	r.Register(r.orphanedNodes())

	return r
}

// Register appends a strategy to the table.
func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// Find returns the first registered strategy that can fix the given error.
func (r *Registry) Find(verr models.ValidationError, workflow *models.Workflow) (Strategy, bool) {
	for _, s := range r.strategies {
		if s.Kind == verr.Type && s.CanFix(verr, workflow) {
			return s, true
		}
	}

	return Strategy{}, false
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int {
	return len(r.strategies)
}
