package healing

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/remedyhq/remedy/pkg/models"
	"github.com/remedyhq/remedy/pkg/validation"
)

const (
	// MaxHealingAttempts bounds the validate+heal cycles of one job.
	MaxHealingAttempts = 3

	// MinConfidenceThreshold gates automatic application of a strategy.
	MinConfidenceThreshold = 0.7

	// aiFixTimeout bounds the contextual fallback, which crosses a process
	// boundary unlike the deterministic strategies.
	aiFixTimeout = 15 * time.Second
)

// Engine drives the heal loop: strategy selection, application, and
// re-validation, with bounded attempts and tracked confidence.
type Engine struct {
	registry  *Registry
	validator *validation.Validator
	aiFixer   AIFixer
	logger    *slog.Logger
}

func NewEngine(registry *Registry, validator *validation.Validator, logger *slog.Logger) *Engine {
	return &Engine{
		registry:  registry,
		validator: validator,
		aiFixer:   NoopAIFixer{},
		logger:    logger.With("module", "healing"),
	}
}

// WithAIFixer replaces the contextual fallback hook.
func (e *Engine) WithAIFixer(fixer AIFixer) *Engine {
	e.aiFixer = fixer

	return e
}

// Heal repairs the given validator findings on a deep clone of the document.
// It always returns a result, never an error: failures surface through
// RemainingErrors, and the unhealed document is never exposed as Workflow.
func (e *Engine) Heal(ctx context.Context, executionID string, workflow *models.Workflow, errs []models.ValidationError) models.HealingResult {
	logger := e.logger.With("execution_id", executionID)

	working := workflow.Clone()
	if working == nil {
		working = &models.Workflow{}
	}

	var appliedFixes []models.AppliedFix

	remaining := make([]models.ValidationError, len(errs))
	copy(remaining, errs)

	attempt := 0

	for len(remaining) > 0 && attempt < MaxHealingAttempts {
		attempt++

		prioritized := prioritize(remaining)
		fixedThisPass := 0

		resolved := make([]bool, len(prioritized))

		for i, verr := range prioritized {
			if resolved[i] {
				continue
			}

			strategy, ok := e.registry.Find(verr, working)
			if !ok {
				logger.DebugContext(ctx, "No strategy for error", "error_type", verr.Type, "path", verr.Path)

				continue
			}

			if strategy.Confidence < MinConfidenceThreshold {
				logger.DebugContext(ctx, "Strategy below confidence threshold",
					"error_type", verr.Type, "confidence", strategy.Confidence)

				continue
			}

			healed, fix := e.applyStrategy(ctx, logger, strategy, verr, working)
			if fix == nil {
				continue
			}

			working = healed
			appliedFixes = append(appliedFixes, *fix)
			fixedThisPass++

			markResolved(prioritized, resolved, *fix)
		}

		if fixedThisPass == 0 && attempt == 1 {
			healed, fixes := e.attemptContextualFixes(ctx, logger, working, prioritized, resolved)
			if len(fixes) > 0 {
				working = healed
				appliedFixes = append(appliedFixes, fixes...)
				fixedThisPass += len(fixes)
			}
		}

		if fixedThisPass == 0 {
			// No progress is possible; keep the current error list for the caller.
			break
		}

		// Every heal pass is followed by a full re-validation; the fresh error
		// list replaces the old one entirely.
		result := e.validator.Validate(ctx, working, validation.Options{SkipDeploymentTest: true})
		remaining = result.Errors
	}

	success := len(remaining) == 0

	healingResult := models.HealingResult{
		Success:         success,
		Healed:          len(appliedFixes) > 0,
		AppliedFixes:    appliedFixes,
		RemainingErrors: remaining,
		Confidence:      meanConfidence(appliedFixes),
	}

	if success {
		healingResult.Workflow = working
	}

	logger.InfoContext(ctx, "Healing finished",
		"success", success,
		"attempts", attempt,
		"applied_fixes", len(appliedFixes),
		"remaining_errors", len(remaining),
	)

	return healingResult
}

// applyStrategy runs one fix attempt. A panicking strategy abandons only that
// attempt; the loop continues with the next error.
func (e *Engine) applyStrategy(
	ctx context.Context,
	logger *slog.Logger,
	strategy Strategy,
	verr models.ValidationError,
	working *models.Workflow,
) (healed *models.Workflow, fix *models.AppliedFix) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Strategy panicked, abandoning fix attempt",
				"error_type", verr.Type, "panic", r)

			healed = working
			fix = nil
		}
	}()

	healed, fix = strategy.Fix(verr, working)
	if healed == nil {
		healed = working
	}

	return healed, fix
}

// attemptContextualFixes runs the best-effort fallback over unresolved complex
// errors. The hook is allowed to no-op.
func (e *Engine) attemptContextualFixes(
	ctx context.Context,
	logger *slog.Logger,
	working *models.Workflow,
	errs []models.ValidationError,
	resolved []bool,
) (*models.Workflow, []models.AppliedFix) {
	if e.aiFixer == nil {
		return working, nil
	}

	var fixes []models.AppliedFix

	for i, verr := range errs {
		if resolved[i] || !isComplexError(verr) {
			continue
		}

		fixCtx, cancel := context.WithTimeout(ctx, aiFixTimeout)
		healed, fix, err := e.aiFixer.Fix(fixCtx, verr, working)

		cancel()

		if err != nil {
			logger.WarnContext(ctx, "Contextual fix failed", "error_type", verr.Type, "error", err)

			continue
		}

		if healed == nil || fix == nil {
			continue
		}

		working = healed
		fixes = append(fixes, *fix)
	}

	return working, fixes
}

// prioritize orders errors by severity descending, preferring fixable errors
// within the same severity.
func prioritize(errs []models.ValidationError) []models.ValidationError {
	ordered := make([]models.ValidationError, len(errs))
	copy(ordered, errs)

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := ordered[i].Severity.Rank(), ordered[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}

		return ordered[i].Fixable && !ordered[j].Fixable
	})

	return ordered
}

// markResolved flags errors the applied fix is considered to have addressed:
// same error type with a matching path, or every error of that type when the
// fix carries no path.
func markResolved(errs []models.ValidationError, resolved []bool, fix models.AppliedFix) {
	for i, verr := range errs {
		if verr.Type != fix.ErrorType {
			continue
		}

		if fix.Path == "" || verr.Path == fix.Path {
			resolved[i] = true
		}
	}
}

func meanConfidence(fixes []models.AppliedFix) float64 {
	if len(fixes) == 0 {
		return 0
	}

	var total float64
	for _, fix := range fixes {
		total += fix.Confidence
	}

	return total / float64(len(fixes))
}
