package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	goble "github.com/SinghProbjot/Synapse/internal/device/go-ble"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/SinghProbjot/Synapse/internal/settings"
	"github.com/SinghProbjot/Synapse/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// radioWaitTimeout bounds how long a command waits for the first radio report.
var radioWaitTimeout = 5 * time.Second

// loadConfig resolves the application config from the global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if v, _ := cmd.Flags().GetString("settings"); v != "" {
		cfg.SettingsFile = v
	}
	if v, _ := cmd.Flags().GetString("macros"); v != "" {
		cfg.MacroFile = v
	}
	if v, _ := cmd.Flags().GetString("address"); v != "" {
		cfg.DeviceAddress = v
	}
	if v, _ := cmd.Flags().GetDuration("discovery-timeout"); v != 0 {
		cfg.DiscoveryTimeout = v
	}
	if v, _ := cmd.Flags().GetDuration("connect-timeout"); v != 0 {
		cfg.ConnectTimeout = v
	}
	if cmd.Flags().Lookup("format") != nil {
		cfg.OutputFormat, _ = cmd.Flags().GetString("format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSettings reads the settings file. A missing file at the default location
// yields an empty store; a missing file named by --settings is an error.
func loadSettings(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger) (*settings.MemoryStore, error) {
	store, err := settings.LoadFile(cfg.SettingsFile)
	if err == nil {
		return store, nil
	}
	explicit, _ := cmd.Flags().GetString("settings")
	if explicit == "" && errors.Is(err, os.ErrNotExist) {
		logger.WithField("path", cfg.SettingsFile).Debug("No settings file, using defaults")
		return settings.NewMemoryStore(), nil
	}
	return nil, err
}

// withInterrupt returns a context cancelled on SIGINT or SIGTERM.
func withInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// sessionOptions customise openSession.
type sessionOptions struct {
	// Motion feeds the gyro mouse; nil disables it
	Motion sensor.Source
	// NoWait returns right after Connect instead of waiting for Ready
	NoWait bool
}

// session is a running engine on top of the go-ble transport.
type session struct {
	cfg       *config.Config
	logger    *logrus.Logger
	settings  *settings.MemoryStore
	transport device.Transport
	engine    *engine.Engine
	events    <-chan engine.Event
	unsub     func()

	closeTransport func() error
}

// newTransport is the transport factory; tests replace it.
var newTransport = func(cfg *config.Config, logger *logrus.Logger) (device.Transport, func(context.Context), func() error) {
	opts := goble.DefaultTransportOptions()
	opts.ConnectTimeout = cfg.ConnectTimeout
	t := goble.NewTransport(opts, logger)
	return t, t.Open, t.Close
}

// openSession starts the engine, waits for the radio and connects to the accessory.
// Progress is written to out. The caller must Close the session.
func openSession(ctx context.Context, cmd *cobra.Command, out io.Writer, sopts sessionOptions) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd)
	if err != nil {
		return nil, err
	}
	store, err := loadSettings(cmd, cfg, logger)
	if err != nil {
		return nil, err
	}

	transport, open, closeTransport := newTransport(cfg, logger)

	opts := engine.DefaultOptions()
	opts.DiscoveryTimeout = cfg.DiscoveryTimeout
	opts.TargetAddress = cfg.DeviceAddress

	eng := engine.New(engine.Config{
		Transport: transport,
		Settings:  store,
		Motion:    sopts.Motion,
		Options:   opts,
		Logger:    logger,
	})
	events, unsub := eng.Subscribe()

	s := &session{
		cfg:            cfg,
		logger:         logger,
		settings:       store,
		transport:      transport,
		engine:         eng,
		events:         events,
		unsub:          unsub,
		closeTransport: closeTransport,
	}

	// Interrupts end the command, not the engine; Close tears it down.
	runCtx := context.WithoutCancel(ctx)
	open(runCtx)
	eng.Start(runCtx)

	if err := s.waitRadio(ctx); err != nil {
		s.release()
		return nil, err
	}
	if err := eng.Connect(ctx); err != nil {
		s.release()
		return nil, err
	}
	if sopts.NoWait {
		return s, nil
	}

	progress := NewProgressPrinter(out, "Connecting to Synapse", engine.StateScanning.String(), engine.StateReady.String())
	progress.Start()
	err = s.waitReady(ctx, progress.Update)
	progress.Stop()
	if err != nil {
		s.release()
		return nil, err
	}

	snap := eng.Snapshot()
	fmt.Fprintf(out, "Connected to %s\n", displayAccessory(snap.Name, snap.Address))
	return s, nil
}

// waitRadio waits for the transport's first radio report.
func (s *session) waitRadio(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, radioWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap := s.engine.Snapshot()
		if snap.RadioOn {
			return nil
		}
		if snap.State == engine.StateRadioUnavailable {
			return engine.ErrRadioOff
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return engine.ErrRadioOff
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitReady follows state changes until the link is Ready or the attempt fails.
func (s *session) waitReady(ctx context.Context, phase func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-s.events:
			if !ok {
				return engine.ErrClosed
			}
			sc, isState := ev.(engine.StateChanged)
			if !isState {
				continue
			}
			phase(sc.To.String())
			switch sc.To {
			case engine.StateReady:
				return nil
			case engine.StateIdle, engine.StateRadioUnavailable:
				if sc.From == engine.StateRadioUnavailable {
					continue
				}
				return s.connectFailure(ctx, sc.To)
			}
		}
	}
}

// connectFailure builds the error for a failed attempt from the log feed. The
// failure is recorded right after the state change, so flush first.
func (s *session) connectFailure(ctx context.Context, state engine.ConnectionState) error {
	if state == engine.StateRadioUnavailable {
		return engine.ErrRadioOff
	}
	if err := s.engine.Flush(ctx); err != nil {
		return err
	}
	for _, entry := range s.engine.Log() {
		if entry.Level <= logrus.WarnLevel {
			return fmt.Errorf("%w: %s", ErrConnectFailed, entry.Message)
		}
	}
	return ErrConnectFailed
}

// waitLinkLoss blocks until ctx is done or the Ready link is lost. Events are
// passed to onEvent when it is not nil. It returns nil when ctx ends the wait.
func (s *session) waitLinkLoss(ctx context.Context, onEvent func(engine.Event) bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.events:
			if !ok {
				return ErrConnectionLost
			}
			if onEvent != nil && onEvent(ev) {
				return nil
			}
			if sc, isState := ev.(engine.StateChanged); isState && sc.From == engine.StateReady {
				return ErrConnectionLost
			}
		}
	}
}

// Close disconnects and releases the engine and transport.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.engine.Disconnect(ctx); err != nil && !errors.Is(err, engine.ErrClosed) {
		s.logger.WithField("error", err).Debug("Disconnect failed")
	}
	s.release()
}

func (s *session) release() {
	s.unsub()
	_ = s.engine.Close()
	if err := s.closeTransport(); err != nil {
		s.logger.WithField("error", err).Debug("Failed to close transport")
	}
}

func displayAccessory(name, address string) string {
	switch {
	case name != "" && address != "":
		return fmt.Sprintf("%s (%s)", name, address)
	case address != "":
		return address
	}
	return "accessory"
}

// runConnected opens a session, runs fn on the Ready engine and closes the session.
func runConnected(cmd *cobra.Command, sopts sessionOptions, fn func(ctx context.Context, s *session) error) error {
	ctx, cancel := withInterrupt(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, cmd, cmd.ErrOrStderr(), sopts)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(ctx, s)
}
