package graph

import (
	"sync"

	"github.com/google/uuid"
)

// Property names a persisted node toggle mirrored from the live processor
type Property string

const (
	PropertyEnabled Property = "enabled"
	PropertyBypass  Property = "bypass"
	PropertyMute    Property = "mute"
)

// Node is the session model of a graph node. Its processor may be absent
// while the plugin is not loaded, and is dropped when the node is removed.
type Node struct {
	id   uuid.UUID
	name string

	mu     sync.RWMutex
	object *Processor
	props  map[Property]bool
}

// NewNode creates a node with a generated ID
func NewNode(name string, object *Processor) *Node {
	return NewNodeWithID(uuid.New(), name, object)
}

// NewNodeWithID creates a node with a known ID, as loaded from a session
func NewNodeWithID(id uuid.UUID, name string, object *Processor) *Node {
	n := &Node{
		id:    id,
		name:  name,
		props: map[Property]bool{PropertyEnabled: true},
	}
	n.object = object
	if object != nil {
		n.syncFromObject(object)
	}
	return n
}

// ID returns the node ID
func (n *Node) ID() uuid.UUID { return n.id }

// Name returns the node name
func (n *Node) Name() string { return n.name }

// Object returns the live processor, or nil
func (n *Node) Object() *Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.object
}

// SetObject replaces the live processor and refreshes the mirrors
func (n *Node) SetObject(object *Processor) {
	n.mu.Lock()
	n.object = object
	n.mu.Unlock()
	if object != nil {
		n.syncFromObject(object)
	}
}

// Property returns a persisted toggle
func (n *Node) Property(p Property) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.props[p]
}

// SetProperty stores a persisted toggle without touching the processor
func (n *Node) SetProperty(p Property, v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[p] = v
}

// IsEnabled returns the persisted enabled flag
func (n *Node) IsEnabled() bool { return n.Property(PropertyEnabled) }

// IsBypassed returns the persisted bypass flag, which equals the processor
// suspend state
func (n *Node) IsBypassed() bool { return n.Property(PropertyBypass) }

// IsMuted returns the persisted mute flag
func (n *Node) IsMuted() bool { return n.Property(PropertyMute) }

// SetMuted mutes the processor and records the property
func (n *Node) SetMuted(muted bool) {
	if object := n.Object(); object != nil {
		object.SetMuted(muted)
	}
	n.SetProperty(PropertyMute, muted)
}

func (n *Node) syncFromObject(object *Processor) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[PropertyEnabled] = object.IsEnabled()
	n.props[PropertyBypass] = object.IsSuspended()
	n.props[PropertyMute] = object.IsMuted()
}
