// Package graph is the node model the mapping engine drives: nodes, their
// live processors and parameters. Topology and DSP live elsewhere.
package graph

import (
	"sync"

	"github.com/google/uuid"
)

// Graph is a flat registry of nodes
type Graph struct {
	mu    sync.RWMutex
	nodes []*Node
}

// New creates an empty graph
func New() *Graph {
	return &Graph{}
}

// AddNode appends n unless a node with the same ID exists
func (g *Graph) AddNode(n *Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.nodes {
		if existing.id == n.id {
			return false
		}
	}
	g.nodes = append(g.nodes, n)
	return true
}

// RemoveNode removes the node and unloads its processor so stale handles
// observe a nil object
func (g *Graph) RemoveNode(id uuid.UUID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, n := range g.nodes {
		if n.id == id {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			n.SetObject(nil)
			return true
		}
	}
	return false
}

// FindNode returns the node with id, or nil
func (g *Graph) FindNode(id uuid.UUID) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		if n.id == id {
			return n
		}
	}
	return nil
}

// Nodes returns a snapshot of the node list
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NumNodes returns the node count
func (g *Graph) NumNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
