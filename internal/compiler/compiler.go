// Package compiler turns a workflow graph into a linear execution plan.
package compiler

import (
	"fmt"

	"github.com/rendis/uiflow/pkg/schema"
)

// Plan is the dependency-respecting linear execution order of a workflow
// graph. Every node appears exactly once; for every edge (s -> t), s
// precedes t.
type Plan struct {
	Nodes []schema.Node
}

// Compile linearizes a workflow graph using Kahn's algorithm.
// The ready-queue is FIFO and seeded/fed in declaration order, so the
// output is deterministic for identical input: independent nodes keep
// their relative node/edge declaration order.
//
// A graph containing a cycle fails with ErrCodeCycleDetected; an edge
// referencing an unknown node fails with ErrCodeDanglingEdge. No partial
// plan is ever returned.
func Compile(graph *schema.WorkflowGraph) (*Plan, error) {
	if graph == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow graph is nil")
	}

	nodes := make(map[string]schema.Node, len(graph.Nodes))
	for i, node := range graph.Nodes {
		if node.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "node at index %d has empty ID", i)
		}
		if _, exists := nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "duplicate node ID: %s", node.ID)
		}
		nodes[node.ID] = node
	}

	// Adjacency in edge declaration order keeps the tie-break stable.
	inDegree := make(map[string]int, len(nodes))
	targets := make(map[string][]string, len(nodes))
	for _, edge := range graph.Edges {
		if _, ok := nodes[edge.Source]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeDanglingEdge,
				"edge references unknown source node: %s", edge.Source)
		}
		if _, ok := nodes[edge.Target]; !ok {
			return nil, schema.NewErrorf(schema.ErrCodeDanglingEdge,
				"edge references unknown target node: %s", edge.Target)
		}
		inDegree[edge.Target]++
		targets[edge.Source] = append(targets[edge.Source], edge.Target)
	}

	// Seed the queue with zero-in-degree nodes in declaration order.
	queue := make([]string, 0, len(nodes))
	for _, node := range graph.Nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	ordered := make([]schema.Node, 0, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		ordered = append(ordered, nodes[current])

		for _, target := range targets[current] {
			inDegree[target]--
			if inDegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if len(ordered) != len(nodes) {
		return nil, schema.NewError(schema.ErrCodeCycleDetected,
			fmt.Sprintf("workflow contains a cycle: %d of %d nodes reachable", len(ordered), len(nodes)))
	}

	return &Plan{Nodes: ordered}, nil
}
