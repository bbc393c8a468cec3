// Package validation implements the three-layer workflow validator: structural
// shape checks, business-logic graph invariants, and target-engine compatibility.
package validation

import (
	"fmt"

	"github.com/remedyhq/remedy/pkg/models"
)

// Structural checks the document against required-shape rules, independent of
// graph semantics. All structural errors are fixable because defaults exist.
type Structural struct{}

func NewStructural() *Structural {
	return &Structural{}
}

func (s *Structural) Validate(workflow *models.Workflow) []models.ValidationError {
	var errs []models.ValidationError

	if workflow.Name == "" {
		errs = append(errs, requiredError("name"))
	}

	if workflow.Nodes == nil {
		errs = append(errs, requiredError("nodes"))
	}

	if workflow.Connections == nil {
		errs = append(errs, requiredError("connections"))
	}

	if workflow.Settings == nil {
		errs = append(errs, requiredError("settings"))
	}

	for i, node := range workflow.Nodes {
		if node == nil {
			continue
		}

		if node.ID == "" {
			errs = append(errs, models.ValidationError{
				Layer:    models.LayerStructure,
				Type:     models.ErrorTypeMinLength,
				Message:  fmt.Sprintf("node %q has an empty id", node.Name),
				Path:     fmt.Sprintf("nodes[%d].id", i),
				Severity: models.SeverityCritical,
				Fixable:  true,
			})
		}

		if !node.Position.Valid() {
			errs = append(errs, models.ValidationError{
				Layer:    models.LayerStructure,
				Type:     models.ErrorTypeInvalidPosition,
				Message:  fmt.Sprintf("node %q position must be exactly two finite numbers", node.Name),
				Path:     fmt.Sprintf("nodes[%d].position", i),
				Severity: models.SeverityCritical,
				Fixable:  true,
			})
		}
	}

	return errs
}

func requiredError(field string) models.ValidationError {
	return models.ValidationError{
		Layer:    models.LayerStructure,
		Type:     models.ErrorTypeRequired,
		Message:  fmt.Sprintf("required field %q is missing", field),
		Path:     field,
		Severity: models.SeverityCritical,
		Fixable:  true,
	}
}
