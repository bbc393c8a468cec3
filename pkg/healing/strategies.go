package healing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/remedyhq/remedy/pkg/models"
)

// Default values inserted for missing required document fields.
func requiredFieldDefault(workflow *models.Workflow, field string) (any, bool) {
	switch field {
	case "name":
		workflow.Name = "My workflow"

		return workflow.Name, true
	case "nodes":
		workflow.Nodes = []*models.Node{}

		return workflow.Nodes, true
	case "connections":
		workflow.Connections = models.Connections{}

		return workflow.Connections, true
	case "settings":
		workflow.Settings = map[string]any{}

		return workflow.Settings, true
	default:
		return nil, false
	}
}

func (r *Registry) missingRequiredProperty() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeRequired,
		Confidence: 0.95,
		CanFix: func(verr models.ValidationError, _ *models.Workflow) bool {
			switch verr.Path {
			case "name", "nodes", "connections", "settings":
				return true
			default:
				return false
			}
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			healed := workflow.Clone()

			newValue, ok := requiredFieldDefault(healed, verr.Path)
			if !ok {
				return workflow, nil
			}

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeAddDefault,
				Description: fmt.Sprintf("inserted default value for missing field %q", verr.Path),
				Path:        verr.Path,
				NewValue:    newValue,
				Confidence:  0.95,
			}
		},
	}
}

func (r *Registry) invalidNodeID() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeMinLength,
		Confidence: 0.9,
		CanFix: func(verr models.ValidationError, workflow *models.Workflow) bool {
			index, ok := nodeIndexFromPath(verr.Path)

			return ok && index < len(workflow.Nodes)
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			index, ok := nodeIndexFromPath(verr.Path)
			if !ok || index >= len(workflow.Nodes) {
				return workflow, nil
			}

			healed := workflow.Clone()
			newID := r.freshNodeID(healed, index)
			healed.Nodes[index].ID = newID

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeGenerateID,
				Description: fmt.Sprintf("generated id %q for node at index %d", newID, index),
				Path:        verr.Path,
				NewValue:    newID,
				Confidence:  0.9,
			}
		},
	}
}

func (r *Registry) invalidPosition() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeInvalidPosition,
		Confidence: 0.85,
		CanFix: func(verr models.ValidationError, workflow *models.Workflow) bool {
			index, ok := nodeIndexFromPath(verr.Path)

			return ok && index < len(workflow.Nodes)
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			index, ok := nodeIndexFromPath(verr.Path)
			if !ok || index >= len(workflow.Nodes) {
				return workflow, nil
			}

			healed := workflow.Clone()
			oldValue := healed.Nodes[index].Position
			healed.Nodes[index].Position = gridPosition(index)

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeResetPosition,
				Description: fmt.Sprintf("reset node %d position to the layout grid", index),
				Path:        verr.Path,
				// Rendered as text: the old position may hold NaN or Inf,
				// which the provenance JSON cannot carry.
				OldValue: fmt.Sprintf("%v", oldValue),
				NewValue:    healed.Nodes[index].Position,
				Confidence:  0.85,
			}
		},
	}
}

func (r *Registry) duplicateNodeIDs() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeDuplicateNodeIDs,
		Confidence: 0.8,
		CanFix: func(_ models.ValidationError, workflow *models.Workflow) bool {
			return len(workflow.Nodes) > 0
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			healed := workflow.Clone()

			// Keep the first occurrence of each id; rename every later
			// duplicate and rewrite connection references in one pass.
			seen := make(map[string]bool)
			rewrites := make(map[string]string)
			timestamp := time.Now().Unix()

			for i, node := range healed.Nodes {
				if node == nil || node.ID == "" {
					continue
				}

				if !seen[node.ID] {
					seen[node.ID] = true

					continue
				}

				oldID := node.ID
				newID := fmt.Sprintf("%s_%d_%d", oldID, i, timestamp)
				node.ID = newID

				// Connections address nodes by their graph key. When the
				// renamed node was keyed by its old id, the whole connection
				// structure is rewritten to follow it.
				if node.Name == oldID {
					node.Name = newID
					rewrites[oldID] = newID
				}
			}

			if len(rewrites) > 0 {
				healed.Connections = rewriteConnections(healed.Connections, rewrites)
			}

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeRenameDuplicate,
				Description: fmt.Sprintf("renamed duplicate node ids: %s", strings.Join(verr.Nodes, ", ")),
				Path:        verr.Path,
				OldValue:    verr.Nodes,
				Confidence:  0.8,
			}
		},
	}
}

func (r *Registry) orphanedNodes() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeOrphanedNodes,
		Confidence: 0.75,
		CanFix: func(verr models.ValidationError, _ *models.Workflow) bool {
			return len(verr.Nodes) > 0
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			healed := workflow.Clone()

			orphans := make(map[string]bool, len(verr.Nodes))
			for _, name := range verr.Nodes {
				orphans[name] = true
			}

			var removed []string

			kept := healed.Nodes[:0]

			for _, node := range healed.Nodes {
				// Trigger nodes are retained even when unreferenced.
				if node != nil && orphans[node.Name] && !node.IsTrigger() {
					removed = append(removed, node.Name)

					continue
				}

				kept = append(kept, node)
			}

			healed.Nodes = kept

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeRemoveOrphan,
				Description: fmt.Sprintf("removed orphaned nodes: %s", strings.Join(removed, ", ")),
				Path:        verr.Path,
				OldValue:    removed,
				Confidence:  0.75,
			}
		},
	}
}

func (r *Registry) circularDependency() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeCircularDependency,
		Confidence: 0.7,
		CanFix: func(verr models.ValidationError, _ *models.Workflow) bool {
			return len(verr.Nodes) > 0
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			healed := workflow.Clone()

			// Lowest-disruption cut: remove the single edge from the cycle's
			// last node back to its first node. No minimum-cut attempt.
			last := verr.Nodes[len(verr.Nodes)-1]
			first := verr.Nodes[0]

			removeEdge(healed.Connections, last, first)

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeBreakCycle,
				Description: fmt.Sprintf("removed back-edge %s -> %s to break the cycle", last, first),
				Path:        verr.Path,
				OldValue:    verr.Nodes,
				Confidence:  0.7,
			}
		},
	}
}

func (r *Registry) invalidConnection() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeInvalidConnection,
		Confidence: 0.85,
		CanFix: func(verr models.ValidationError, _ *models.Workflow) bool {
			return len(verr.Nodes) == 2
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			healed := workflow.Clone()
			source, target := verr.Nodes[0], verr.Nodes[1]

			if healed.NodeByName(source) == nil {
				// Source vanished: the whole entry is dangling.
				delete(healed.Connections, source)
			} else {
				removeEdge(healed.Connections, source, target)
			}

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeRemoveConnection,
				Description: fmt.Sprintf("dropped dangling connection %s -> %s", source, target),
				Path:        verr.Path,
				OldValue:    fmt.Sprintf("%s -> %s", source, target),
				Confidence:  0.85,
			}
		},
	}
}

func (r *Registry) forbiddenNodeType() Strategy {
	return Strategy{
		Kind:       models.ErrorTypeForbiddenNodeType,
		Confidence: 0.75,
		CanFix: func(verr models.ValidationError, workflow *models.Workflow) bool {
			index, ok := nodeIndexFromPath(verr.Path)

			return ok && index < len(workflow.Nodes)
		},
		Fix: func(verr models.ValidationError, workflow *models.Workflow) (*models.Workflow, *models.AppliedFix) {
			index, ok := nodeIndexFromPath(verr.Path)
			if !ok || index >= len(workflow.Nodes) {
				return workflow, nil
			}

			healed := workflow.Clone()
			node := healed.Nodes[index]
			oldType := node.Type
			node.Type = models.NoOpNodeType
			// Parameters are not validated as safe, so they are discarded
			// rather than sanitized.
			node.Parameters = map[string]any{}

			return healed, &models.AppliedFix{
				ErrorType:   verr.Type,
				FixType:     models.FixTypeReplaceNodeType,
				Description: fmt.Sprintf("replaced forbidden type %q with %q and cleared parameters", oldType, node.Type),
				Path:        verr.Path,
				OldValue:    oldType,
				NewValue:    node.Type,
				Confidence:  0.75,
			}
		},
	}
}

// freshNodeID derives an identifier from the node index and a monotonically
// increasing counter, skipping any id already present in the document.
func (r *Registry) freshNodeID(workflow *models.Workflow, index int) string {
	existing := make(map[string]bool, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		if node != nil {
			existing[node.ID] = true
		}
	}

	for {
		candidate := fmt.Sprintf("node_%d_%d", index, r.idCounter.Add(1))
		if !existing[candidate] {
			return candidate
		}
	}
}

// gridPosition lays healed nodes out on a deterministic grid so they never
// overlap at the origin.
func gridPosition(index int) models.Position {
	return models.Position{
		float64(250 + (index%3)*200),
		float64(300 + (index/3)*150),
	}
}

// nodeIndexFromPath extracts i from paths shaped like "nodes[i].field".
func nodeIndexFromPath(path string) (int, bool) {
	open := strings.Index(path, "[")
	closing := strings.Index(path, "]")

	if !strings.HasPrefix(path, "nodes[") || closing < open {
		return 0, false
	}

	index, err := strconv.Atoi(path[open+1 : closing])
	if err != nil || index < 0 {
		return 0, false
	}

	return index, true
}

// removeEdge deletes every edge from source to target across all channels,
// pruning entries that become empty.
func removeEdge(connections models.Connections, source, target string) {
	channels, ok := connections[source]
	if !ok {
		return
	}

	for channel, outputs := range channels {
		for i, targets := range outputs {
			kept := targets[:0]

			for _, conn := range targets {
				if conn != nil && conn.Node == target {
					continue
				}

				kept = append(kept, conn)
			}

			outputs[i] = kept
		}

		channels[channel] = outputs
	}

	if connectionsEmpty(channels) {
		delete(connections, source)
	}
}

// rewriteConnections applies an id rewrite map to the whole connection
// structure, both source keys and edge targets.
func rewriteConnections(connections models.Connections, rewrites map[string]string) models.Connections {
	rewritten := make(models.Connections, len(connections))

	for source, channels := range connections {
		if newSource, ok := rewrites[source]; ok {
			source = newSource
		}

		for _, outputs := range channels {
			for _, targets := range outputs {
				for _, conn := range targets {
					if conn == nil {
						continue
					}

					if newTarget, ok := rewrites[conn.Node]; ok {
						conn.Node = newTarget
					}
				}
			}
		}

		rewritten[source] = channels
	}

	return rewritten
}

func connectionsEmpty(channels models.ChannelConnections) bool {
	for _, outputs := range channels {
		for _, targets := range outputs {
			if len(targets) > 0 {
				return false
			}
		}
	}

	return true
}
