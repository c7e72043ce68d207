package mapping

import (
	"sync"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/rs/zerolog"
)

// noteHandler maps a note to a latching toggle or a momentary hold
type noteHandler struct {
	handlerBase

	mu        sync.Mutex
	lastEvent midi.Message
	flips     int
}

func newNoteHandler(loop *mainloop.Loop, c *session.Control, n *graph.Node, object *graph.Processor, index int, log zerolog.Logger) *noteHandler {
	h := &noteHandler{}
	h.init(loop, c, n, object, index, h.apply, log)
	return h
}

func (h *noteHandler) wants(msg midi.Message) bool {
	if h.momentary.Load() {
		if !msg.IsNoteOnOrOff() {
			return false
		}
	} else if !msg.IsNoteOn() {
		return false
	}
	return msg.NoteNumber() == int(h.eventID.Load()) && h.channelMatches(msg)
}

func (h *noteHandler) perform(msg midi.Message) {
	momentary := h.momentary.Load()

	if h.parameter != nil {
		switch {
		case momentary:
			if h.held(msg) {
				h.setParameter(1)
			} else {
				h.setParameter(0)
			}
		case msg.IsNoteOn():
			if h.parameter.Value() < 0.5 {
				h.setParameter(1)
			} else {
				h.setParameter(0)
			}
		}
		return
	}

	h.mu.Lock()
	h.lastEvent = msg
	if !momentary && msg.IsNoteOn() {
		h.flips++
	}
	h.mu.Unlock()
	h.updater.Trigger()
}

// held reports the momentary state msg asks for
func (h *noteHandler) held(msg midi.Message) bool {
	if h.inverse.Load() {
		return msg.IsNoteOff()
	}
	return msg.IsNoteOn()
}

func (h *noteHandler) apply() {
	h.mu.Lock()
	msg, flips := h.lastEvent, h.flips
	h.flips = 0
	h.mu.Unlock()

	object := h.live()
	if object == nil {
		return
	}
	if h.momentary.Load() {
		h.applyToggle(object, h.held(msg))
		return
	}
	// toggles that arrived together cancel out in pairs
	if flips%2 == 1 {
		h.applyToggle(object, !h.isOn(object))
	}
}
