package mapping

import (
	"sync"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/rs/zerolog"
)

const maxControllerValue = 127

// ccHandler maps a controller to a continuous parameter, or to a toggle
// through threshold edge detection
type ccHandler struct {
	handlerBase

	mu      sync.Mutex
	last    int
	hasLast bool
	desired int
	// set when the update for desired was dropped by a full loop queue
	dropped bool
}

func newCCHandler(loop *mainloop.Loop, c *session.Control, n *graph.Node, object *graph.Processor, index int, log zerolog.Logger) *ccHandler {
	h := &ccHandler{}
	h.init(loop, c, n, object, index, h.apply, log)
	if graph.IsPseudoParameter(index) {
		// start level with the node so an edge matching it changes nothing
		if h.isOn(object) {
			h.desired = h.stateToCompare()
		} else {
			h.desired = 1 - h.stateToCompare()
		}
	}
	return h
}

func (h *ccHandler) wants(msg midi.Message) bool {
	return msg.IsController() &&
		msg.ControllerNumber() == int(h.eventID.Load()) &&
		h.channelMatches(msg)
}

func (h *ccHandler) perform(msg midi.Message) {
	v := msg.ControllerValue()
	if h.parameter != nil {
		h.setParameter(float32(v) / maxControllerValue)
		h.mu.Lock()
		h.last, h.hasLast = v, true
		h.mu.Unlock()
		return
	}

	h.mu.Lock()
	changed := h.advance(v) || h.dropped
	h.mu.Unlock()
	if !changed {
		return
	}
	queued := h.updater.Trigger()
	h.mu.Lock()
	h.dropped = !queued
	h.mu.Unlock()
	if !queued {
		h.log.Debug().Str("control", h.ctrl.Name()).Int("parameter", h.index).Msg("toggle update dropped, retrying on next message")
	}
}

// advance runs edge detection for v and reports whether the desired state
// changed. Callers hold h.mu.
func (h *ccHandler) advance(v int) bool {
	prev, primed := h.last, h.hasLast
	h.last, h.hasLast = v, true

	t := int(h.toggleValue.Load())
	desired := h.desired
	switch {
	case h.equalsMode.Load():
		if v == t {
			desired = 1 - desired
		}
	case !primed:
		// nothing to compare the first sample against
	case t == 0:
		if prev == 0 && v > 0 {
			desired = 1
		} else if prev > 0 && v == 0 {
			desired = 0
		}
	default:
		// with t == 127 this is rising to and falling from the top value
		if prev < t && v >= t {
			desired = 1
		} else if prev >= t && v < t {
			desired = 0
		}
	}

	if desired == h.desired {
		return false
	}
	h.desired = desired
	return true
}

func (h *ccHandler) stateToCompare() int {
	if h.equalsMode.Load() || !h.inverse.Load() {
		return 1
	}
	return 0
}

func (h *ccHandler) desiredState() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.desired
}

func (h *ccHandler) apply() {
	object := h.live()
	if object == nil {
		return
	}
	h.applyToggle(object, h.desiredState() == h.stateToCompare())
}
