// Package service coordinates the session model with the mapping engine:
// rebuilding inputs and handlers after edits, and running MIDI learn.
package service

import (
	"io"
	"os"

	"github.com/PixPMusic/gopher-graphmap/internal/mapping"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type options struct {
	log        zerolog.Logger
	autoCreate bool
}

// Option configures a service
type Option func(*options)

// WithLogger sets the service logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithAutoCreateControls makes learn add a control for messages that match
// none on the capturing device
func WithAutoCreateControls(enabled bool) Option {
	return func(o *options) { o.autoCreate = enabled }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DeviceService keeps engine inputs in step with the session's devices
type DeviceService struct {
	engine    *mapping.Engine
	session   *session.Session
	transport mapping.Transport
	log       zerolog.Logger
}

// NewDeviceService binds engine to sess, reading MIDI from transport
func NewDeviceService(engine *mapping.Engine, sess *session.Session, transport mapping.Transport, opts ...Option) *DeviceService {
	o := buildOptions(opts)
	return &DeviceService{
		engine:    engine,
		session:   sess,
		transport: transport,
		log:       o.log,
	}
}

// Session returns the bound session
func (s *DeviceService) Session() *session.Session { return s.session }

// Refresh rebuilds every input and handler from the session and starts
// mapping. Maps that no longer resolve are skipped. It returns the number
// of live handlers.
func (s *DeviceService) Refresh() int {
	s.engine.Clear()

	for _, d := range s.session.Devices() {
		if !s.engine.AddInput(d, s.transport) {
			s.log.Warn().Str("device", d.Name()).Msg("could not add input")
		}
	}

	active := 0
	for _, m := range s.session.Maps() {
		control, node, ok := s.session.ResolveMap(m)
		if !ok {
			s.log.Debug().
				Str("controller", m.Controller.String()).
				Str("control", m.Control.String()).
				Str("node", m.Node.String()).
				Msg("skipping stale map")
			continue
		}
		if !s.engine.AddHandler(control, node, m.Parameter) {
			s.log.Debug().Str("control", control.Name()).Str("node", node.Name()).Int("parameter", m.Parameter).Msg("skipping unmappable map")
			continue
		}
		active++
	}

	s.engine.StartMapping()
	s.log.Info().Int("devices", s.engine.NumInputs()).Int("maps", active).Msg("mappings refreshed")
	return active
}

// AddDevice adds d to the session and refreshes
func (s *DeviceService) AddDevice(d *session.ControllerDevice) bool {
	if !s.session.AddDevice(d) {
		return false
	}
	s.Refresh()
	return true
}

// Import reads a controller device file, adds the device under fresh IDs
// and refreshes
func (s *DeviceService) Import(r io.Reader) (*session.ControllerDevice, error) {
	d, err := session.DecodeDevice(r)
	if err != nil {
		return nil, err
	}
	if !s.session.AddDevice(d) {
		return nil, errors.Errorf("device %s already in session", d.ID())
	}
	s.log.Info().Str("device", d.Name()).Int("controls", d.NumControls()).Msg("device imported")
	s.Refresh()
	return d, nil
}

// ImportFile imports the device file at path
func (s *DeviceService) ImportFile(path string) (*session.ControllerDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open device %s", path)
	}
	defer f.Close()

	d, err := s.Import(f)
	return d, errors.Wrapf(err, "import %s", path)
}

// RemoveDevice drops d, its controls and its maps
func (s *DeviceService) RemoveDevice(d *session.ControllerDevice) bool {
	if !s.session.RemoveDevice(d) {
		return false
	}
	s.engine.RemoveInput(d)
	return true
}

// AddControl attaches c to d and resubscribes d's input
func (s *DeviceService) AddControl(d *session.ControllerDevice, c *session.Control) {
	d.AddControl(c)
	s.engine.RefreshInput(d)
}

// RemoveControl drops c and the maps naming it, then refreshes
func (s *DeviceService) RemoveControl(c *session.Control) bool {
	if !s.session.RemoveControl(c) {
		return false
	}
	s.Refresh()
	return true
}

// RefreshDevice resubscribes d after its controls were edited
func (s *DeviceService) RefreshDevice(d *session.ControllerDevice) bool {
	return s.engine.RefreshInput(d)
}
