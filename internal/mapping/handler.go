package mapping

import (
	"sync/atomic"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/rs/zerolog"
)

// handler turns matched MIDI into a parameter change. wants and perform run
// on MIDI goroutines; close runs on the main loop.
type handler interface {
	wants(msg midi.Message) bool
	perform(msg midi.Message)
	control() *session.Control
	close()
}

// A bypass toggle that is applied keeps the node processing, so the
// processor suspend flag is the negation of the applied state.
const bypassInvertsSuspend = true

func suspendFor(applied bool) bool {
	if bypassInvertsSuspend {
		return !applied
	}
	return applied
}

// handlerBase holds what both handler kinds share: the target, the live
// mirrors of the control and the deferred update.
type handlerBase struct {
	ctrl      *session.Control
	node      *graph.Node
	object    *graph.Processor
	parameter *graph.Parameter // nil for pseudo targets
	index     int

	eventID     atomic.Int32
	channel     atomic.Int32
	toggleValue atomic.Int32
	equalsMode  atomic.Bool
	momentary   atomic.Bool
	inverse     atomic.Bool

	unsubscribe func()
	updater     *mainloop.AsyncUpdater
	log         zerolog.Logger
}

func (h *handlerBase) init(loop *mainloop.Loop, c *session.Control, n *graph.Node, object *graph.Processor, index int, apply func(), log zerolog.Logger) {
	h.ctrl = c
	h.node = n
	h.object = object
	h.index = index
	h.log = log
	if !graph.IsPseudoParameter(index) {
		h.parameter = object.Parameter(index)
	}
	h.reload()
	h.unsubscribe = c.Subscribe(func(session.ControlProperty) { h.reload() })
	h.updater = mainloop.NewAsyncUpdater(loop, apply)
}

func (h *handlerBase) reload() {
	c := h.ctrl
	h.eventID.Store(int32(c.EventID()))
	h.channel.Store(int32(c.Channel()))
	h.toggleValue.Store(int32(c.ToggleValue()))
	h.equalsMode.Store(c.ToggleMode() == session.ToggleEquals)
	h.momentary.Store(c.IsMomentary())
	h.inverse.Store(c.InverseToggle())
}

func (h *handlerBase) control() *session.Control { return h.ctrl }

func (h *handlerBase) close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	h.updater.Cancel()
}

func (h *handlerBase) channelMatches(msg midi.Message) bool {
	ch := int(h.channel.Load())
	return ch == 0 || ch == msg.Channel()
}

// live returns the processor if the node still hosts the one this handler
// was built for
func (h *handlerBase) live() *graph.Processor {
	if object := h.node.Object(); object != nil && object == h.object {
		return object
	}
	return nil
}

// setParameter applies v inside one change gesture
func (h *handlerBase) setParameter(v float32) {
	if h.live() == nil {
		return
	}
	h.parameter.BeginChangeGesture()
	h.parameter.SetValueNotifyingHost(v)
	h.parameter.EndChangeGesture()
}

// isOn reports the live toggle state in applied terms
func (h *handlerBase) isOn(object *graph.Processor) bool {
	switch h.index {
	case graph.EnabledParameter:
		return object.IsEnabled()
	case graph.BypassParameter:
		return object.IsSuspended() != bypassInvertsSuspend
	case graph.MuteParameter:
		return object.IsMuted()
	}
	return false
}

// applyToggle writes the applied state to the processor and the node
// property mirror. Main loop only.
func (h *handlerBase) applyToggle(object *graph.Processor, applied bool) {
	switch h.index {
	case graph.EnabledParameter:
		object.SetEnabled(applied)
		h.node.SetProperty(graph.PropertyEnabled, applied)
	case graph.BypassParameter:
		suspend := suspendFor(applied)
		object.SuspendProcessing(suspend)
		h.node.SetProperty(graph.PropertyBypass, suspend)
	case graph.MuteParameter:
		h.node.SetMuted(applied)
	default:
		return
	}
	h.log.Debug().
		Str("node", h.node.Name()).
		Str("parameter", graph.ParameterName(h.index)).
		Bool("applied", applied).
		Msg("toggle applied")
}
