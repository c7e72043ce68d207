package mainloop

import (
	"slices"
	"sync"
)

// Signal is a list of callbacks fired together
type Signal struct {
	mu    sync.Mutex
	next  int
	slots map[int]func()
}

// Connect registers fn and returns a func that disconnects it
func (s *Signal) Connect(fn func()) (disconnect func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots == nil {
		s.slots = make(map[int]func())
	}
	id := s.next
	s.next++
	s.slots[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.slots, id)
	}
}

// Emit calls every connected func in connection order
func (s *Signal) Emit() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.slots[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
