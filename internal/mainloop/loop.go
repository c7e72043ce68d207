// Package mainloop serializes deferred work onto one goroutine. MIDI
// goroutines post into it without blocking; the loop owner drains it.
package mainloop

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultBuffer = 256

// ErrAlreadyRunning is returned by a second concurrent Run
var ErrAlreadyRunning = errors.New("main loop already running")

// Loop runs posted funcs one at a time, in posting order
type Loop struct {
	ch  chan func()
	log zerolog.Logger

	mu      sync.Mutex
	running bool
}

// Option configures a Loop
type Option func(*Loop)

// WithLogger sets the loop logger
func WithLogger(l zerolog.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// New creates a loop with a fixed buffer
func New(buffer int, opts ...Option) *Loop {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	l := &Loop{ch: make(chan func(), buffer), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn without blocking. It returns false when the buffer is full.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return true
	}
	select {
	case l.ch <- fn:
		return true
	default:
		l.log.Warn().Msg("main loop queue full, dropping update")
		return false
	}
}

// Drain runs every queued func on the calling goroutine and returns how
// many ran. Funcs posted while draining run in the same call.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.ch:
			fn()
			n++
		default:
			return n
		}
	}
}

// Pending returns the number of queued funcs
func (l *Loop) Pending() int { return len(l.ch) }

// Run executes queued funcs until ctx is cancelled. It blocks; the calling
// goroutine becomes the main thread. Only one Run may be active.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			// finish what is already queued so captured events are not lost
			l.Drain()
			return ctx.Err()
		case fn := <-l.ch:
			fn()
		}
	}
}

// IsRunning reports whether Run is active
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
