package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyhq/remedy/pkg/models"
)

func linearWorkflow() *models.Workflow {
	return &models.Workflow{
		Name: "Order sync",
		Nodes: []*models.Node{
			{ID: "n1", Name: "Webhook", Type: "n8n-nodes-base.webhook", Position: models.Position{250, 300}},
			{ID: "n2", Name: "Set", Type: "n8n-nodes-base.set", Position: models.Position{450, 300}},
		},
		Connections: models.Connections{
			"Webhook": {
				models.MainChannel: [][]*models.Connection{{{Node: "Set", Type: models.MainChannel}}},
			},
		},
		Settings: map[string]any{},
	}
}

func TestStructural_RequiredFields(t *testing.T) {
	errs := NewStructural().Validate(&models.Workflow{})
	require.Len(t, errs, 4)

	paths := make([]string, 0, len(errs))
	for _, err := range errs {
		assert.Equal(t, models.LayerStructure, err.Layer)
		assert.Equal(t, models.ErrorTypeRequired, err.Type)
		assert.Equal(t, models.SeverityCritical, err.Severity)
		assert.True(t, err.Fixable)

		paths = append(paths, err.Path)
	}

	assert.Equal(t, []string{"name", "nodes", "connections", "settings"}, paths)
}

func TestStructural_NodeChecks(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes = append(workflow.Nodes, &models.Node{
		Name: "Broken",
		Type: "n8n-nodes-base.set",
		// empty id, nil position
	})

	errs := NewStructural().Validate(workflow)
	require.Len(t, errs, 2)

	assert.Equal(t, models.ErrorTypeMinLength, errs[0].Type)
	assert.Equal(t, "nodes[2].id", errs[0].Path)
	assert.Equal(t, models.ErrorTypeInvalidPosition, errs[1].Type)
	assert.Equal(t, "nodes[2].position", errs[1].Path)
}

func TestStructural_ValidWorkflow(t *testing.T) {
	assert.Empty(t, NewStructural().Validate(linearWorkflow()))
}

func TestBusinessLogic_DuplicateIDs(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes[1].ID = "n1"

	errs := NewBusinessLogic().Validate(workflow)
	require.Len(t, errs, 1)

	assert.Equal(t, models.ErrorTypeDuplicateNodeIDs, errs[0].Type)
	assert.Equal(t, models.SeverityHigh, errs[0].Severity)
	assert.True(t, errs[0].Fixable)
	assert.Equal(t, []string{"n1"}, errs[0].Nodes)
	assert.Contains(t, errs[0].Message, "indices [1]")
}

func TestBusinessLogic_OrphanedNodes(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes = append(workflow.Nodes, &models.Node{
		ID:       "n3",
		Name:     "Lonely",
		Type:     "n8n-nodes-base.set",
		Position: models.Position{650, 300},
	})

	errs := NewBusinessLogic().Validate(workflow)
	require.Len(t, errs, 1)

	assert.Equal(t, models.ErrorTypeOrphanedNodes, errs[0].Type)
	assert.Equal(t, models.SeverityMedium, errs[0].Severity)
	assert.Equal(t, []string{"Lonely"}, errs[0].Nodes)
}

func TestBusinessLogic_TriggerNodesAreNotOrphans(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes = append(workflow.Nodes, &models.Node{
		ID:       "n3",
		Name:     "Nightly",
		Type:     "n8n-nodes-base.cron",
		Position: models.Position{650, 300},
	})

	assert.Empty(t, NewBusinessLogic().Validate(workflow))
}

func TestBusinessLogic_CycleDetection(t *testing.T) {
	workflow := &models.Workflow{
		Name: "Loop",
		Nodes: []*models.Node{
			{ID: "n1", Name: "A", Type: "n8n-nodes-base.webhook", Position: models.Position{250, 300}},
			{ID: "n2", Name: "B", Type: "n8n-nodes-base.set", Position: models.Position{450, 300}},
			{ID: "n3", Name: "C", Type: "n8n-nodes-base.set", Position: models.Position{650, 300}},
		},
		Connections: models.Connections{
			"A": {models.MainChannel: [][]*models.Connection{{{Node: "B"}}}},
			"B": {models.MainChannel: [][]*models.Connection{{{Node: "C"}}}},
			"C": {models.MainChannel: [][]*models.Connection{{{Node: "A"}}}},
		},
		Settings: map[string]any{},
	}

	errs := NewBusinessLogic().Validate(workflow)
	require.Len(t, errs, 1)

	assert.Equal(t, models.ErrorTypeCircularDependency, errs[0].Type)
	assert.Equal(t, models.SeverityHigh, errs[0].Severity)
	assert.Equal(t, []string{"A", "B", "C"}, errs[0].Nodes)
}

func TestBusinessLogic_SelfLoop(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Connections["Set"] = models.ChannelConnections{
		models.MainChannel: [][]*models.Connection{{{Node: "Set"}}},
	}

	errs := NewBusinessLogic().Validate(workflow)
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrorTypeCircularDependency, errs[0].Type)
	assert.Equal(t, []string{"Set"}, errs[0].Nodes)
}

func TestCompatibility_InvalidConnection(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Connections["Webhook"][models.MainChannel][0] = append(
		workflow.Connections["Webhook"][models.MainChannel][0],
		&models.Connection{Node: "ghost"},
	)

	errs := NewCompatibility().Validate(workflow)
	require.Len(t, errs, 1)

	assert.Equal(t, models.ErrorTypeInvalidConnection, errs[0].Type)
	assert.Equal(t, "connections.Webhook.ghost", errs[0].Path)
	assert.Equal(t, []string{"Webhook", "ghost"}, errs[0].Nodes)
}

func TestCompatibility_InvalidConnectionDistinctTargets(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Connections["Webhook"][models.MainChannel][0] = append(
		workflow.Connections["Webhook"][models.MainChannel][0],
		&models.Connection{Node: "ghost-a"},
		&models.Connection{Node: "ghost-b"},
	)

	errs := NewCompatibility().Validate(workflow)
	require.Len(t, errs, 2)

	paths := []string{errs[0].Path, errs[1].Path}
	assert.Contains(t, paths, "connections.Webhook.ghost-a")
	assert.Contains(t, paths, "connections.Webhook.ghost-b")
	assert.NotEqual(t, paths[0], paths[1])
}

func TestCompatibility_ForbiddenNodeType(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Nodes[1].Type = "n8n-nodes-base.executeCommand"

	errs := NewCompatibility().Validate(workflow)
	require.Len(t, errs, 1)

	assert.Equal(t, models.ErrorTypeForbiddenNodeType, errs[0].Type)
	assert.Equal(t, models.SeverityCritical, errs[0].Severity)
	assert.Equal(t, "nodes[1].type", errs[0].Path)
}

func TestValidator_ValidWorkflow(t *testing.T) {
	result := NewValidator().Validate(t.Context(), linearWorkflow(), Options{SkipDeploymentTest: true})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidator_LayerOrdering(t *testing.T) {
	workflow := linearWorkflow()
	workflow.Name = ""                            // structure layer
	workflow.Nodes[1].ID = "n1"                   // business layer
	workflow.Nodes[1].Type = "n8n-nodes-base.ssh" // compatibility layer

	result := NewValidator().Validate(t.Context(), workflow, Options{SkipDeploymentTest: true})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 3)

	assert.Equal(t, models.LayerStructure, result.Errors[0].Layer)
	assert.Equal(t, models.LayerBusiness, result.Errors[1].Layer)
	assert.Equal(t, models.LayerCompatibility, result.Errors[2].Layer)
}

func TestValidator_NilWorkflow(t *testing.T) {
	result := NewValidator().Validate(t.Context(), nil, Options{})

	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "workflow", result.Errors[0].Path)
	assert.False(t, result.Errors[0].Fixable)
}

type failingDeployment struct{}

func (failingDeployment) TestDeployment(_ context.Context, _ *models.Workflow) error {
	return errors.New("engine rejected workflow")
}

func TestValidator_DeploymentTest(t *testing.T) {
	validator := NewValidator().WithDeploymentTester(failingDeployment{})

	skipped := validator.Validate(t.Context(), linearWorkflow(), Options{SkipDeploymentTest: true})
	assert.True(t, skipped.Valid)

	checked := validator.Validate(t.Context(), linearWorkflow(), Options{})
	require.False(t, checked.Valid)
	require.Len(t, checked.Errors, 1)
	assert.Equal(t, "deployment_test_failed", checked.Errors[0].Type)
	assert.False(t, checked.Errors[0].Fixable)
}

func TestSchemaGate(t *testing.T) {
	gate, err := NewSchemaGate()
	require.NoError(t, err)

	valid := []byte(`{"name": "wf", "nodes": [{"name": "Webhook", "type": "n8n-nodes-base.webhook"}]}`)
	errs, err := gate.Check(valid)
	require.NoError(t, err)
	assert.Empty(t, errs)

	missingName := []byte(`{"nodes": []}`)
	errs, err = gate.Check(missingName)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
	assert.Equal(t, models.LayerStructure, errs[0].Layer)
	assert.Equal(t, models.ErrorTypeRequired, errs[0].Type)
	assert.True(t, errs[0].Fixable)

	_, err = gate.Check([]byte(`{not json`))
	assert.Error(t, err)
}
