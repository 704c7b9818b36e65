// SPDX-License-Identifier: MPL-2.0

// Package dag provides directed acyclic graph operations for topological sorting
// and cycle detection. The context graph resolver uses it to order resolved
// contexts and to report requires cycles as an explicit path.
package dag

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("dependency cycle detected")

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle is the path around one cycle. The first node is repeated at the end,
		// so A -> B -> A is reported as [A B A].
		Cycle []string
	}

	// Graph is a directed graph for topological sorting.
	// Nodes are identified by string keys. An edge from A to B means A is
	// ordered before B.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors.
		adjacency map[string][]string
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle for errors.Is() compatibility.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge adds a directed edge from -> to, meaning "from" is ordered before "to".
// Both nodes are implicitly added if they don't exist.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// TopologicalSort returns a valid order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	// Seed the queue with nodes that have no incoming edges, in insertion order.
	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, &CycleError{Cycle: g.cyclePath(inDegree)}
	}

	return result, nil
}

// Cycle returns the path around one cycle, or nil when the graph is acyclic.
func (g *Graph) Cycle() []string {
	if _, err := g.TopologicalSort(); err != nil {
		var cycleErr *CycleError
		if errors.As(err, &cycleErr) {
			return cycleErr.Cycle
		}
	}
	return nil
}

// cyclePath extracts one cycle from the nodes Kahn's algorithm could not emit.
// Every such node still has a predecessor among them, so walking predecessors
// from any of them must revisit a node. The path starts at the earliest added node.
func (g *Graph) cyclePath(inDegree map[string]int) []string {
	preds := make(map[string][]string)
	var start string
	for _, from := range g.nodes {
		if inDegree[from] == 0 {
			continue
		}
		if start == "" {
			start = from
		}
		for _, to := range g.adjacency[from] {
			if inDegree[to] > 0 {
				preds[to] = append(preds[to], from)
			}
		}
	}

	position := make(map[string]int)
	var walk []string
	node := start
	for {
		if idx, ok := position[node]; ok {
			cycle := slices.Clone(walk[idx:])
			slices.Reverse(cycle)
			first := 0
			for i, n := range cycle {
				if slices.Index(g.nodes, n) < slices.Index(g.nodes, cycle[first]) {
					first = i
				}
			}
			cycle = slices.Concat(cycle[first:], cycle[:first])
			return append(cycle, cycle[0])
		}
		position[node] = len(walk)
		walk = append(walk, node)
		node = preds[node][0]
	}
}
