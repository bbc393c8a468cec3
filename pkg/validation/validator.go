package validation

import (
	"context"

	"github.com/remedyhq/remedy/pkg/models"
)

// DeploymentTester is the downstream engine collaborator used for dry-run
// deployment checks. Deployment itself is out of scope for this pipeline.
type DeploymentTester interface {
	TestDeployment(ctx context.Context, workflow *models.Workflow) error
}

// Options controls a single validation pass.
type Options struct {
	// SkipDeploymentTest omits the downstream engine dry-run check.
	SkipDeploymentTest bool
}

// Validator runs the three validation layers in fixed order: structure,
// business logic, then compatibility. Later layers assume the earlier layers'
// basic shape holds but must not panic on nil collections.
type Validator struct {
	structural    *Structural
	business      *BusinessLogic
	compatibility *Compatibility
	deployment    DeploymentTester
}

func NewValidator() *Validator {
	return &Validator{
		structural:    NewStructural(),
		business:      NewBusinessLogic(),
		compatibility: NewCompatibility(),
	}
}

// WithDeploymentTester attaches the external engine collaborator for dry-run
// deployment checks.
func (v *Validator) WithDeploymentTester(tester DeploymentTester) *Validator {
	v.deployment = tester

	return v
}

// Validate aggregates the findings of all three layers into a single ordered
// list. Valid is true iff that list is empty. Errors are returned as data,
// never raised.
func (v *Validator) Validate(ctx context.Context, workflow *models.Workflow, opts Options) models.ValidationResult {
	if workflow == nil {
		return models.ValidationResult{
			Valid: false,
			Errors: []models.ValidationError{{
				Layer:    models.LayerStructure,
				Type:     models.ErrorTypeRequired,
				Message:  "workflow document is missing",
				Path:     "workflow",
				Severity: models.SeverityCritical,
				Fixable:  false,
			}},
		}
	}

	errs := v.structural.Validate(workflow)
	errs = append(errs, v.business.Validate(workflow)...)
	errs = append(errs, v.compatibility.Validate(workflow)...)

	if len(errs) == 0 && v.deployment != nil && !opts.SkipDeploymentTest {
		err := v.deployment.TestDeployment(ctx, workflow)
		if err != nil {
			errs = append(errs, models.ValidationError{
				Layer:    models.LayerCompatibility,
				Type:     "deployment_test_failed",
				Message:  err.Error(),
				Severity: models.SeverityHigh,
				Fixable:  false,
			})
		}
	}

	return models.ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
