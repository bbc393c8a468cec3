package validation

import (
	"fmt"

	"github.com/remedyhq/remedy/pkg/models"
)

// defaultForbiddenNodeTypes is the deny-list of engine node types that are not
// allowed to reach deployment, per security and operational policy.
var defaultForbiddenNodeTypes = []string{
	"n8n-nodes-base.executeCommand",
	"n8n-nodes-base.readWriteFile",
	"n8n-nodes-base.ssh",
}

// Compatibility checks the document against the target engine's constraints:
// every connection endpoint must name an existing node and node types must not
// be on the deny-list.
type Compatibility struct {
	forbiddenTypes map[string]bool
}

func NewCompatibility() *Compatibility {
	return NewCompatibilityWithDenyList(defaultForbiddenNodeTypes)
}

func NewCompatibilityWithDenyList(denyList []string) *Compatibility {
	forbidden := make(map[string]bool, len(denyList))
	for _, nodeType := range denyList {
		forbidden[nodeType] = true
	}

	return &Compatibility{forbiddenTypes: forbidden}
}

func (c *Compatibility) Validate(workflow *models.Workflow) []models.ValidationError {
	var errs []models.ValidationError

	names := make(map[string]bool, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if node != nil {
			names[node.Name] = true
		}
	}

	for _, edge := range workflow.Connections.Edges() {
		if names[edge.Source] && names[edge.Target] {
			continue
		}

		errs = append(errs, models.ValidationError{
			Layer:    models.LayerCompatibility,
			Type:     models.ErrorTypeInvalidConnection,
			Message:  fmt.Sprintf("connection %s -> %s references a nonexistent node", edge.Source, edge.Target),
			Path:     fmt.Sprintf("connections.%s.%s", edge.Source, edge.Target),
			Severity: models.SeverityHigh,
			Fixable:  true,
			Nodes:    []string{edge.Source, edge.Target},
		})
	}

	for i, node := range workflow.Nodes {
		if node == nil || !c.forbiddenTypes[node.Type] {
			continue
		}

		errs = append(errs, models.ValidationError{
			Layer:    models.LayerCompatibility,
			Type:     models.ErrorTypeForbiddenNodeType,
			Message:  fmt.Sprintf("node %q uses forbidden type %q", node.Name, node.Type),
			Path:     fmt.Sprintf("nodes[%d].type", i),
			Severity: models.SeverityCritical,
			Fixable:  true,
			Nodes:    []string{node.Name},
		})
	}

	return errs
}
