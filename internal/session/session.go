// Package session holds the persisted mapping model: controller devices,
// their controls, the node graph they drive and the maps between them.
package session

import (
	"sync"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/google/uuid"
)

// ControllerMap binds one control to one node parameter. Parameter may be
// one of the graph pseudo indices.
type ControllerMap struct {
	Controller uuid.UUID
	Control    uuid.UUID
	Node       uuid.UUID
	Parameter  int
}

// Session owns devices and maps, and references the graph they target
type Session struct {
	graph *graph.Graph

	mu      sync.RWMutex
	devices []*ControllerDevice
	maps    []ControllerMap
}

// New creates an empty session over g. A nil g gets a fresh graph.
func New(g *graph.Graph) *Session {
	if g == nil {
		g = graph.New()
	}
	return &Session{graph: g}
}

// Graph returns the node graph
func (s *Session) Graph() *graph.Graph { return s.graph }

// AddDevice appends d unless it is already present
func (s *Session) AddDevice(d *ControllerDevice) bool {
	if d == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.devices {
		if existing == d || existing.id == d.id {
			return false
		}
	}
	s.devices = append(s.devices, d)
	return true
}

// RemoveDevice drops d, its controls and every map naming it
func (s *Session) RemoveDevice(d *ControllerDevice) bool {
	if !s.removeDevice(d) {
		return false
	}
	for _, c := range d.Controls() {
		d.RemoveControl(c)
	}
	return true
}

func (s *Session) removeDevice(d *ControllerDevice) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, existing := range s.devices {
		if existing == d {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.devices = append(s.devices[:idx], s.devices[idx+1:]...)

	kept := s.maps[:0]
	for _, m := range s.maps {
		if m.Controller != d.id {
			kept = append(kept, m)
		}
	}
	s.maps = kept
	return true
}

// RemoveControl detaches c from its device and drops every map naming it
func (s *Session) RemoveControl(c *Control) bool {
	d := c.Device()
	if d == nil || !d.RemoveControl(c) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.maps[:0]
	for _, m := range s.maps {
		if m.Control != c.id {
			kept = append(kept, m)
		}
	}
	s.maps = kept
	return true
}

// Devices returns a snapshot of the device list
func (s *Session) Devices() []*ControllerDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ControllerDevice, len(s.devices))
	copy(out, s.devices)
	return out
}

// FindDevice returns the device with id, or nil
func (s *Session) FindDevice(id uuid.UUID) *ControllerDevice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.id == id {
			return d
		}
	}
	return nil
}

// AddMap appends m unless an identical map exists
func (s *Session) AddMap(m ControllerMap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.maps {
		if existing == m {
			return false
		}
	}
	s.maps = append(s.maps, m)
	return true
}

// RemoveMap drops m and reports whether it was present
func (s *Session) RemoveMap(m ControllerMap) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.maps {
		if existing == m {
			s.maps = append(s.maps[:i], s.maps[i+1:]...)
			return true
		}
	}
	return false
}

// Maps returns a snapshot of the map list
func (s *Session) Maps() []ControllerMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ControllerMap, len(s.maps))
	copy(out, s.maps)
	return out
}

// ResolveMap looks up the objects m names. ok is false when the device,
// control or node no longer exists.
func (s *Session) ResolveMap(m ControllerMap) (c *Control, n *graph.Node, ok bool) {
	d := s.FindDevice(m.Controller)
	if d == nil {
		return nil, nil, false
	}
	c = d.FindControl(m.Control)
	n = s.graph.FindNode(m.Node)
	if c == nil || n == nil {
		return nil, nil, false
	}
	return c, n, true
}
