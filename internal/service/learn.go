package service

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/PixPMusic/gopher-graphmap/internal/graph"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/mapping"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/rs/zerolog"
)

// LearnState is the phase of a MIDI learn cycle
type LearnState int

const (
	CaptureStopped LearnState = iota
	CaptureParameter
	CaptureControl
)

func (s LearnState) String() string {
	switch s {
	case CaptureParameter:
		return "parameter"
	case CaptureControl:
		return "control"
	}
	return "stopped"
}

// MappingService runs MIDI learn: the next parameter touch, then the next
// controller message, become a new map. Methods run on the main loop.
type MappingService struct {
	loop    *mainloop.Loop
	engine  *mapping.Engine
	devices *DeviceService
	log     zerolog.Logger

	autoCreate bool

	state     LearnState
	capture   *parameterCapture
	node      *graph.Node
	parameter int

	mappedMu sync.Mutex
	mapped   []func(session.ControllerMap)
}

// NewMappingService creates a learn coordinator over the devices service
func NewMappingService(loop *mainloop.Loop, engine *mapping.Engine, devices *DeviceService, opts ...Option) *MappingService {
	o := buildOptions(opts)
	s := &MappingService{
		loop:       loop,
		engine:     engine,
		devices:    devices,
		log:        o.log,
		autoCreate: o.autoCreate,
		parameter:  graph.NoParameter,
	}
	engine.OnCaptured(s.controlCaptured)
	return s
}

// State returns the learn phase
func (s *MappingService) State() LearnState { return s.state }

// IsLearning reports whether a learn cycle is active
func (s *MappingService) IsLearning() bool { return s.state != CaptureStopped }

// OnMapped registers fn for each map created by learn
func (s *MappingService) OnMapped(fn func(session.ControllerMap)) {
	s.mappedMu.Lock()
	defer s.mappedMu.Unlock()
	s.mapped = append(s.mapped, fn)
}

// Learn starts a new cycle, or cancels the current one
func (s *MappingService) Learn(start bool) {
	s.cancel()
	if !start {
		return
	}

	s.capture = newParameterCapture(s)
	for _, n := range s.devices.Session().Graph().Nodes() {
		s.capture.watch(n)
	}
	s.state = CaptureParameter
	s.log.Info().Msg("learn: touch a parameter")
}

// Remove drops m from the session and rebuilds the handlers
func (s *MappingService) Remove(m session.ControllerMap) bool {
	if !s.devices.Session().RemoveMap(m) {
		return false
	}
	s.devices.Refresh()
	return true
}

func (s *MappingService) cancel() {
	if s.capture != nil {
		s.capture.detach()
		s.capture = nil
	}
	s.engine.ResetCapture()
	s.node, s.parameter = nil, graph.NoParameter
	s.state = CaptureStopped
}

func (s *MappingService) parameterCaptured(c *parameterCapture, n *graph.Node, parameter int) {
	if s.capture != c || s.state != CaptureParameter {
		return
	}
	c.detach()
	s.capture = nil

	s.node, s.parameter = n, parameter
	s.state = CaptureControl
	s.engine.Capture(true)
	s.log.Info().
		Str("node", n.Name()).
		Int("parameter", parameter).
		Msg("learn: move a control")
}

func (s *MappingService) controlCaptured() {
	if s.state != CaptureControl {
		return
	}
	node, parameter := s.node, s.parameter
	control := s.engine.CapturedControl()
	msg := s.engine.CapturedMessage()
	device := s.engine.CapturedDevice()
	s.cancel()

	if control == nil && s.autoCreate && device != nil {
		if control = session.NewControlFromMessage(controlName(msg), msg); control != nil {
			s.devices.AddControl(device, control)
			s.log.Info().Str("device", device.Name()).Str("control", control.Name()).Msg("learn: created control")
		}
	}

	if !captureComplete(node, parameter, control, msg) {
		s.log.Debug().Str("message", msg.String()).Msg("learn: capture incomplete")
		return
	}
	if !s.engine.AddHandler(control, node, parameter) {
		s.log.Debug().Str("control", control.Name()).Msg("learn: handler rejected")
		return
	}

	m := session.ControllerMap{
		Controller: control.Device().ID(),
		Control:    control.ID(),
		Node:       node.ID(),
		Parameter:  parameter,
	}
	s.devices.Session().AddMap(m)
	s.log.Info().
		Str("control", control.Name()).
		Str("node", node.Name()).
		Int("parameter", parameter).
		Msg("learn: mapped")

	s.mappedMu.Lock()
	fns := slices.Clone(s.mapped)
	s.mappedMu.Unlock()
	for _, fn := range fns {
		fn(m)
	}
}

func captureComplete(n *graph.Node, parameter int, c *session.Control, msg midi.Message) bool {
	if n == nil || c == nil || !c.IsValid() {
		return false
	}
	object := n.Object()
	if object == nil || !object.ContainsParameter(parameter) {
		return false
	}
	return msg.IsController() || msg.IsNoteOn()
}

func controlName(msg midi.Message) string {
	if msg.IsController() {
		return fmt.Sprintf("CC %d", msg.ControllerNumber())
	}
	return fmt.Sprintf("Note %d", msg.NoteNumber())
}

// parameterCapture watches every loaded processor for the first touch.
// Listener callbacks arrive on any goroutine.
type parameterCapture struct {
	svc     *MappingService
	done    atomic.Bool
	targets []*captureTarget
}

type captureTarget struct {
	capture *parameterCapture
	node    *graph.Node
	object  *graph.Processor
}

func newParameterCapture(s *MappingService) *parameterCapture {
	return &parameterCapture{svc: s}
}

func (c *parameterCapture) watch(n *graph.Node) {
	object := n.Object()
	if object == nil {
		return
	}
	t := &captureTarget{capture: c, node: n, object: object}
	object.AddListener(t)
	for _, p := range object.Parameters() {
		p.AddListener(t)
	}
	c.targets = append(c.targets, t)
}

func (c *parameterCapture) detach() {
	for _, t := range c.targets {
		t.object.RemoveListener(t)
		for _, p := range t.object.Parameters() {
			p.RemoveListener(t)
		}
	}
	c.targets = nil
}

func (c *parameterCapture) touched(n *graph.Node, parameter int) {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	if !c.svc.loop.Post(func() { c.svc.parameterCaptured(c, n, parameter) }) {
		c.done.Store(false)
	}
}

func (t *captureTarget) ParameterValueChanged(p *graph.Parameter, _ float32) {
	t.capture.touched(t.node, p.Index())
}

func (t *captureTarget) ParameterGestureChanged(p *graph.Parameter, starting bool) {
	if starting {
		t.capture.touched(t.node, p.Index())
	}
}

func (t *captureTarget) EnablementChanged(*graph.Processor) {
	t.capture.touched(t.node, graph.EnabledParameter)
}

func (t *captureTarget) BypassChanged(*graph.Processor) {
	t.capture.touched(t.node, graph.BypassParameter)
}

func (t *captureTarget) MuteChanged(*graph.Processor) {
	t.capture.touched(t.node, graph.MuteParameter)
}
