package healing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedyhq/remedy/pkg/models"
)

func TestNodeIndexFromPath(t *testing.T) {
	tests := []struct {
		path  string
		index int
		ok    bool
	}{
		{path: "nodes[0].id", index: 0, ok: true},
		{path: "nodes[12].position", index: 12, ok: true},
		{path: "nodes[-1].id", ok: false},
		{path: "nodes[x].id", ok: false},
		{path: "connections", ok: false},
		{path: "name", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			index, ok := nodeIndexFromPath(tt.path)
			assert.Equal(t, tt.ok, ok)

			if tt.ok {
				assert.Equal(t, tt.index, index)
			}
		})
	}
}

func TestGridPosition(t *testing.T) {
	assert.Equal(t, models.Position{250, 300}, gridPosition(0))
	assert.Equal(t, models.Position{450, 300}, gridPosition(1))
	assert.Equal(t, models.Position{650, 300}, gridPosition(2))
	assert.Equal(t, models.Position{250, 450}, gridPosition(3))
	assert.Equal(t, models.Position{450, 600}, gridPosition(7))
}

func TestRegistry_FreshNodeIDNeverReusesExisting(t *testing.T) {
	registry := NewRegistry()
	workflow := &models.Workflow{
		Nodes: []*models.Node{
			{ID: "node_0_1", Name: "A"},
			{ID: "node_0_2", Name: "B"},
		},
	}

	id := registry.freshNodeID(workflow, 0)
	assert.NotEqual(t, "node_0_1", id)
	assert.NotEqual(t, "node_0_2", id)

	next := registry.freshNodeID(workflow, 0)
	assert.NotEqual(t, id, next)
}

func TestRemoveEdge_PrunesEmptySourceEntries(t *testing.T) {
	connections := models.Connections{
		"C": {
			models.MainChannel: [][]*models.Connection{{{Node: "A"}}},
		},
	}

	removeEdge(connections, "C", "A")

	_, ok := connections["C"]
	assert.False(t, ok)
}

func TestRemoveEdge_KeepsOtherTargets(t *testing.T) {
	connections := models.Connections{
		"A": {
			models.MainChannel: [][]*models.Connection{{
				{Node: "B"},
				{Node: "C"},
			}},
		},
	}

	removeEdge(connections, "A", "C")

	edges := connections.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "B", edges[0].Target)
}

func TestRewriteConnections(t *testing.T) {
	connections := models.Connections{
		"old": {
			models.MainChannel: [][]*models.Connection{{{Node: "other"}}},
		},
		"source": {
			models.MainChannel: [][]*models.Connection{{{Node: "old"}}},
		},
	}

	rewritten := rewriteConnections(connections, map[string]string{"old": "new"})

	_, hasOld := rewritten["old"]
	assert.False(t, hasOld)

	_, hasNew := rewritten["new"]
	assert.True(t, hasNew)

	edges := rewritten.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "other", edges[0].Target)
	assert.Equal(t, "new", edges[1].Target)
}

func TestRegistry_FindRespectsRegistrationOrder(t *testing.T) {
	registry := &Registry{}
	registry.Register(Strategy{
		Kind:       "dup",
		Confidence: 0.9,
		CanFix: func(_ models.ValidationError, _ *models.Workflow) bool {
			return false
		},
	})
	registry.Register(Strategy{
		Kind:       "dup",
		Confidence: 0.8,
		CanFix: func(_ models.ValidationError, _ *models.Workflow) bool {
			return true
		},
	})

	strategy, ok := registry.Find(models.ValidationError{Type: "dup"}, &models.Workflow{})
	require.True(t, ok)
	assert.InDelta(t, 0.8, strategy.Confidence, 1e-9)

	_, ok = registry.Find(models.ValidationError{Type: "missing"}, &models.Workflow{})
	assert.False(t, ok)
}

func TestNewRegistry_CoversAllFixableErrorTypes(t *testing.T) {
	registry := NewRegistry()
	assert.Equal(t, 8, registry.Len())
}
