package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/remedyhq/remedy/pkg/models"
)

// BusinessLogic checks graph invariants: unique node identifiers, reachability
// of non-trigger nodes, and acyclicity of the connection graph.
type BusinessLogic struct{}

func NewBusinessLogic() *BusinessLogic {
	return &BusinessLogic{}
}

func (b *BusinessLogic) Validate(workflow *models.Workflow) []models.ValidationError {
	var errs []models.ValidationError

	if dup := b.checkDuplicateIDs(workflow); dup != nil {
		errs = append(errs, *dup)
	}

	if orphan := b.checkOrphanedNodes(workflow); orphan != nil {
		errs = append(errs, *orphan)
	}

	errs = append(errs, b.checkCycles(workflow)...)

	return errs
}

// checkDuplicateIDs scans nodes in order and aggregates every repeated id into
// a single error so the rename strategy can rewrite them in one pass.
func (b *BusinessLogic) checkDuplicateIDs(workflow *models.Workflow) *models.ValidationError {
	seen := make(map[string]int)

	var duplicates []string

	var indices []string

	for i, node := range workflow.Nodes {
		if node == nil || node.ID == "" {
			continue
		}

		if _, ok := seen[node.ID]; ok {
			duplicates = append(duplicates, node.ID)
			indices = append(indices, fmt.Sprintf("%d", i))

			continue
		}

		seen[node.ID] = i
	}

	if len(duplicates) == 0 {
		return nil
	}

	return &models.ValidationError{
		Layer:    models.LayerBusiness,
		Type:     models.ErrorTypeDuplicateNodeIDs,
		Message:  fmt.Sprintf("duplicate node ids %s at indices [%s]", strings.Join(duplicates, ", "), strings.Join(indices, ", ")),
		Path:     "nodes",
		Severity: models.SeverityHigh,
		Fixable:  true,
		Nodes:    duplicates,
	}
}

// checkOrphanedNodes flags nodes whose name appears on no connection edge.
// Trigger nodes are exempt: they legitimately have no inbound edge.
func (b *BusinessLogic) checkOrphanedNodes(workflow *models.Workflow) *models.ValidationError {
	connected := make(map[string]bool)

	for _, edge := range workflow.Connections.Edges() {
		connected[edge.Source] = true
		connected[edge.Target] = true
	}

	var orphans []string

	for _, node := range workflow.Nodes {
		if node == nil || connected[node.Name] || node.IsTrigger() {
			continue
		}

		orphans = append(orphans, node.Name)
	}

	if len(orphans) == 0 {
		return nil
	}

	return &models.ValidationError{
		Layer:    models.LayerBusiness,
		Type:     models.ErrorTypeOrphanedNodes,
		Message:  fmt.Sprintf("orphaned nodes not referenced by any connection: %s", strings.Join(orphans, ", ")),
		Path:     "nodes",
		Severity: models.SeverityMedium,
		Fixable:  true,
		Nodes:    orphans,
	}
}

// checkCycles runs depth-first search over the connection graph tracking the
// recursion stack. A back-edge to a node still on the stack is a cycle; one
// error is emitted per distinct cycle with the ordered node sequence attached.
func (b *BusinessLogic) checkCycles(workflow *models.Workflow) []models.ValidationError {
	adjacency := make(map[string][]string)

	for _, edge := range workflow.Connections.Edges() {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	vertices := make([]string, 0, len(adjacency))
	for vertex := range adjacency {
		vertices = append(vertices, vertex)
	}

	sort.Strings(vertices)

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var stack []string

	var cycles [][]string

	var visit func(vertex string)
	visit = func(vertex string) {
		visited[vertex] = true
		onStack[vertex] = true
		stack = append(stack, vertex)

		for _, next := range adjacency[vertex] {
			if onStack[next] {
				cycles = append(cycles, extractCycle(stack, next))

				continue
			}

			if !visited[next] {
				visit(next)
			}
		}

		onStack[vertex] = false
		stack = stack[:len(stack)-1]
	}

	for _, vertex := range vertices {
		if !visited[vertex] {
			visit(vertex)
		}
	}

	errs := make([]models.ValidationError, 0, len(cycles))
	for _, cycle := range cycles {
		errs = append(errs, models.ValidationError{
			Layer:    models.LayerBusiness,
			Type:     models.ErrorTypeCircularDependency,
			Message:  fmt.Sprintf("circular dependency: %s -> %s", strings.Join(cycle, " -> "), cycle[0]),
			Path:     "connections",
			Severity: models.SeverityHigh,
			Fixable:  true,
			Nodes:    cycle,
		})
	}

	return errs
}

// extractCycle returns the stack segment from the back-edge target to the
// current vertex, i.e. the cycle's node sequence in traversal order.
func extractCycle(stack []string, start string) []string {
	for i, vertex := range stack {
		if vertex == start {
			cycle := make([]string, len(stack)-i)
			copy(cycle, stack[i:])

			return cycle
		}
	}

	return []string{start}
}
