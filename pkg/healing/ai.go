package healing

import (
	"context"

	"github.com/remedyhq/remedy/pkg/models"
)

// complexMessageLength marks long validator messages as complex enough to
// hand to the contextual fixer.
const complexMessageLength = 120

// AIFixer is the optional best-effort contextual repair hook for errors the
// deterministic strategies left unresolved. Implementations cross a process
// boundary and must honor the context deadline. Returning (nil, nil) is a
// legitimate no-op.
type AIFixer interface {
	Fix(ctx context.Context, verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix, error)
}

// NoopAIFixer is the default contextual fixer. It never changes the document;
// outcomes must not depend on it.
type NoopAIFixer struct{}

func (NoopAIFixer) Fix(_ context.Context, _ models.ValidationError, _ *models.Workflow) (*models.Workflow, *models.AppliedFix, error) {
	return nil, nil, nil
}

// isComplexError reports whether an error qualifies for the contextual
// fallback: cycles, orphans, or unusually long validator messages.
func isComplexError(verr models.ValidationError) bool {
	return verr.Type == models.ErrorTypeCircularDependency ||
		verr.Type == models.ErrorTypeOrphanedNodes ||
		len(verr.Message) > complexMessageLength
}
