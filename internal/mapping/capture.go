package mapping

import (
	"sync"
	"sync/atomic"

	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
)

// mailbox holds the last captured event. Writers are MIDI goroutines,
// readers the main loop.
type mailbox struct {
	armed atomic.Bool

	mu      sync.Mutex
	device  *session.ControllerDevice
	control *session.Control
	message midi.Message

	notify   *mainloop.AsyncUpdater
	captured mainloop.Signal
}

func newMailbox(loop *mainloop.Loop) *mailbox {
	m := &mailbox{}
	m.notify = mainloop.NewAsyncUpdater(loop, m.captured.Emit)
	return m
}

func (m *mailbox) isArmed() bool { return m.armed.Load() }

func (m *mailbox) arm(armed bool) { m.armed.Store(armed) }

// offer stores the event if armed, disarming in the same step
func (m *mailbox) offer(device *session.ControllerDevice, control *session.Control, msg midi.Message) bool {
	if !m.armed.CompareAndSwap(true, false) {
		return false
	}
	m.mu.Lock()
	m.device, m.control, m.message = device, control, msg
	m.mu.Unlock()

	m.notify.Cancel()
	m.notify.Trigger()
	return true
}

func (m *mailbox) result() (*session.ControllerDevice, *session.Control, midi.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.device, m.control, m.message
}

func (m *mailbox) reset() {
	m.armed.Store(false)
	m.notify.Cancel()
	m.mu.Lock()
	m.device, m.control, m.message = nil, nil, midi.Message{}
	m.mu.Unlock()
}
