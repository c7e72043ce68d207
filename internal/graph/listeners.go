package graph

import (
	"sync"
	"sync/atomic"
)

// listenerSet is a copy-on-write list. Notification reads a snapshot without
// locking so it is safe from MIDI and audio goroutines.
type listenerSet[T comparable] struct {
	mu   sync.Mutex
	list atomic.Pointer[[]T]
}

func (s *listenerSet[T]) add(l T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []T
	if cur := s.list.Load(); cur != nil {
		for _, existing := range *cur {
			if existing == l {
				return
			}
		}
		next = make([]T, len(*cur), len(*cur)+1)
		copy(next, *cur)
	}
	next = append(next, l)
	s.list.Store(&next)
}

func (s *listenerSet[T]) remove(l T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.list.Load()
	if cur == nil {
		return
	}
	next := make([]T, 0, len(*cur))
	for _, existing := range *cur {
		if existing != l {
			next = append(next, existing)
		}
	}
	s.list.Store(&next)
}

func (s *listenerSet[T]) each(fn func(T)) {
	cur := s.list.Load()
	if cur == nil {
		return
	}
	for _, l := range *cur {
		fn(l)
	}
}
