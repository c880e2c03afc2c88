package dag

import (
	"strings"
	"sync"
)

// Graph is a directed graph of string ids. Edges point from a node to the
// nodes it depends on. All methods are safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

type node struct {
	id   string
	deps map[string]*node
}

// CycleError reports a cycle found by DetectCycles. Path starts and ends with
// the same node and follows dependency edges, so each element depends on the
// one after it.
type CycleError struct {
	Path []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}
