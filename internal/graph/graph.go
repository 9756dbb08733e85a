// Package graph provides the dependency DAG used to schedule task nodes.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Ak-9647/queryflow/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among task nodes.
var ErrCycleDetected = errors.New("circular dependency detected")

// resolved reports whether a dependency in the given status unblocks its
// dependents. Failed is terminal but does NOT resolve: dependents of a
// failed node are skipped by the coordinator, not released.
func resolved(s models.NodeStatus) bool {
	switch s {
	case models.NodeStatusSucceeded, models.NodeStatusSkipped, models.NodeStatusFallenBack:
		return true
	default:
		return false
	}
}

// TaskGraph is a directed acyclic graph of task nodes. Edges point from a
// node to the nodes it depends on. The graph owns its nodes for the
// lifetime of one request.
type TaskGraph struct {
	mu    sync.RWMutex
	nodes map[string]*models.TaskNode
	edges map[string][]string
	// order preserves insertion order for deterministic iteration.
	order []string
}

// New creates an empty task graph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes: make(map[string]*models.TaskNode),
		edges: make(map[string][]string),
	}
}

// Build constructs the graph from decomposed nodes. It returns an error if
// dependencies reference unknown nodes or a cycle is present.
func (g *TaskGraph) Build(nodes []*models.TaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range nodes {
		if _, dup := g.nodes[n.ID]; dup {
			return fmt.Errorf("duplicate node id %s", n.ID)
		}
		g.nodes[n.ID] = n
		g.edges[n.ID] = nil
		g.order = append(g.order, n.ID)
	}

	for _, n := range nodes {
		for _, depID := range n.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("node %s depends on unknown node %s", n.ID, depID)
			}
			g.edges[n.ID] = append(g.edges[n.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *TaskGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked runs DFS coloring. Caller must hold the lock.
func (g *TaskGraph) hasCycleLocked() bool {
	// 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// TopologicalSort returns node IDs with every dependency before its
// dependents. Among unordered nodes, insertion order is preserved so the
// result is deterministic for a given decomposition.
func (g *TaskGraph) TopologicalSort() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Ready returns nodes that are pending and whose dependencies have all
// resolved (Succeeded, Skipped, or FallenBack). Ready nodes may execute
// in parallel.
func (g *TaskGraph) Ready() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ready []*models.TaskNode
	for _, id := range g.order {
		n := g.nodes[id]
		if n.Status != models.NodeStatusPending {
			continue
		}

		ok := true
		for _, depID := range g.edges[id] {
			dep := g.nodes[depID]
			if dep == nil || !resolved(dep.Status) {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, n)
		}
	}
	return ready
}

// Node returns the node for an ID, or nil if not found.
func (g *TaskGraph) Node(id string) *models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Nodes returns all nodes in insertion order.
func (g *TaskGraph) Nodes() []*models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*models.TaskNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Size returns the number of nodes in the graph.
func (g *TaskGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Dependencies returns the IDs the given node depends on.
func (g *TaskGraph) Dependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// Dependents returns the IDs of nodes that depend on the given node,
// sorted for determinism.
func (g *TaskGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for nodeID, deps := range g.edges {
		for _, depID := range deps {
			if depID == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// Status returns the current status of a node, or empty for unknown IDs.
func (g *TaskGraph) Status(id string) models.NodeStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[id]; ok {
		return n.Status
	}
	return ""
}

// SetStatus transitions a node to the given status under the graph lock.
func (g *TaskGraph) SetStatus(id string, status models.NodeStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := g.nodes[id]; n != nil {
		n.Status = status
	}
}

// Done returns true once every node has reached a terminal state.
func (g *TaskGraph) Done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, n := range g.nodes {
		if !n.Status.Terminal() {
			return false
		}
	}
	return true
}
