package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PixPMusic/gopher-graphmap/internal/config"
	"github.com/PixPMusic/gopher-graphmap/internal/mainloop"
	"github.com/PixPMusic/gopher-graphmap/internal/mapping"
	"github.com/PixPMusic/gopher-graphmap/internal/midi"
	"github.com/PixPMusic/gopher-graphmap/internal/service"
	"github.com/PixPMusic/gopher-graphmap/internal/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
)

func main() {
	configPath := flag.String("config", "", "config file (default: user config dir)")
	sessionPath := flag.String("session", "", "session file, overrides the config")
	learn := flag.Bool("learn", false, "start in MIDI learn mode")
	listPorts := flag.Bool("list", false, "list MIDI input ports and exit")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log := newLogger(config.Default())
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log := newLogger(cfg)
	if *sessionPath != "" {
		cfg.SessionPath = *sessionPath
	}

	// Initialize MIDI manager
	midiManager := midi.NewManager(midi.WithLogger(log))
	defer midiManager.Close()

	if *listPorts {
		for _, name := range midiManager.ListInPorts() {
			fmt.Println(name)
		}
		return
	}

	sess, err := loadSession(cfg.SessionPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load session")
	}
	log.Info().
		Str("session", cfg.SessionPath).
		Int("devices", len(sess.Devices())).
		Int("nodes", sess.Graph().NumNodes()).
		Int("maps", len(sess.Maps())).
		Msg("session loaded")

	loop := mainloop.New(cfg.MainLoopBuffer, mainloop.WithLogger(log))
	engine := mapping.New(loop, mapping.WithLogger(log))
	devices := service.NewDeviceService(engine, sess, midiManager, service.WithLogger(log))
	learner := service.NewMappingService(loop, engine, devices,
		service.WithLogger(log),
		service.WithAutoCreateControls(cfg.AutoCreateControls),
	)
	learner.OnMapped(func(session.ControllerMap) {
		if err := session.Save(cfg.SessionPath, sess); err != nil {
			log.Error().Err(err).Msg("failed to save session")
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop.Post(func() {
		if cfg.StartMapping || *learn {
			devices.Refresh()
		}
		if *learn {
			learner.Learn(true)
		}
	})

	if cfg.HostInput {
		go forwardHostInput(os.Stdin, midiManager, log)
	}

	// The main goroutine becomes the main loop until interrupted
	if err := loop.Run(ctx); err != nil && errors.Cause(err) != context.Canceled {
		log.Error().Err(err).Msg("main loop stopped")
	}
	engine.Clear()
	log.Info().Msg("shut down")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// loadSession returns an empty session when path does not exist yet
func loadSession(path string) (*session.Session, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return session.New(nil), nil
	}
	return session.Load(path)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.LogFormat != config.LogFormatJSON {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(cfg.Level()).With().Timestamp().Logger()
}

// forwardHostInput reads one hex encoded message per line, e.g. "b0 07 40",
// and hands it to host input devices. Timestamps are milliseconds since
// forwarding started, like those of a listened port.
func forwardHostInput(r io.Reader, m *midi.Manager, log zerolog.Logger) {
	start := time.Now()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ReplaceAll(strings.TrimSpace(scanner.Text()), " ", "")
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("invalid host message")
			continue
		}
		m.ProcessHostMessages(midi.FromMIDI(raw, int32(time.Since(start).Milliseconds())))
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("host input closed")
	}
}
