package dag

import (
	"fmt"
	"sort"
)

// New creates an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds a node. Adding an existing id is a no-op.
func (g *Graph) AddNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		g.nodes[id] = &node{id: id, deps: make(map[string]*node)}
	}
}

// AddEdge records that dependentID depends on depID. Both nodes must exist;
// self edges are rejected.
func (g *Graph) AddEdge(depID, dependentID string) error {
	if depID == dependentID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", depID, depID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	dep, ok := g.nodes[depID]
	if !ok {
		return fmt.Errorf("source node not found: %s", depID)
	}
	dependent, ok := g.nodes[dependentID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", dependentID)
	}
	dependent.deps[depID] = dep
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// DetectCycles returns a *CycleError describing the first cycle found, or
// nil. Nodes and edges are visited in id order, so the reported cycle is
// stable for a given graph.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	done := make(map[string]bool)
	onStack := make(map[string]int)
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if done[n.id] {
			return nil
		}
		if start, ok := onStack[n.id]; ok {
			path := append([]string{}, stack[start:]...)
			return &CycleError{Path: append(path, n.id)}
		}

		onStack[n.id] = len(stack)
		stack = append(stack, n.id)
		for _, id := range sortedIDs(n.deps) {
			if err := visit(n.deps[id]); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		delete(onStack, n.id)
		done[n.id] = true
		return nil
	}

	for _, id := range sortedIDs(g.nodes) {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

func sortedIDs(nodes map[string]*node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
