package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/remedyhq/remedy/pkg/models"
)

// workflowSchema is the JSON Schema gate applied to raw documents at the API
// boundary, before decoding into models.Workflow. It checks top-level shape
// only; the typed validators own everything graph-related.
const workflowSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"id": {"type": "string"},
					"name": {"type": "string"},
					"type": {"type": "string"},
					"typeVersion": {"type": "integer"},
					"parameters": {"type": "object"}
				},
				"required": ["name", "type"]
			}
		},
		"connections": {"type": "object"},
		"settings": {"type": "object"},
		"active": {"type": "boolean"}
	},
	"required": ["name", "nodes"]
}`

// SchemaGate validates raw JSON documents against the workflow schema and maps
// violations onto structure-layer validation errors.
type SchemaGate struct {
	schema *gojsonschema.Schema
}

func NewSchemaGate() (*SchemaGate, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(workflowSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow schema: %w", err)
	}

	return &SchemaGate{schema: schema}, nil
}

// Check validates the raw document bytes. Schema findings are returned as
// data; the error return covers malformed JSON only.
func (g *SchemaGate) Check(raw []byte) ([]models.ValidationError, error) {
	result, err := g.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("document is not valid JSON: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	errs := make([]models.ValidationError, 0, len(result.Errors()))

	for _, violation := range result.Errors() {
		errType := violation.Type()
		errs = append(errs, models.ValidationError{
			Layer:    models.LayerStructure,
			Type:     errType,
			Message:  violation.String(),
			Path:     violation.Field(),
			Severity: models.SeverityCritical,
			Fixable:  errType == models.ErrorTypeRequired,
		})
	}

	return errs, nil
}
