//go:build test

package testutils

import (
	"context"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/SinghProbjot/Synapse/internal/settings"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// Accessory identifiers used by engine tests.
const (
	AccessoryAddress = "AA:BB:CC:DD:EE:FF"
	AccessoryName    = "Synapse"
	ServiceUUID      = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	WriteUUID        = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
)

// Eventually timings: long enough for a loaded CI box, short enough to keep
// the suite quick.
const (
	WaitTimeout  = 2 * time.Second
	PollInterval = 2 * time.Millisecond
)

// EngineSuite runs an engine against a MockTransport.
//
// Embed it and override SetupTest to tweak Options or Settings before calling
// the parent:
//
//	func (s *MySuite) SetupTest() {
//	    s.EngineSuite.SetupTest()
//	    s.ConnectReady()
//	}
type EngineSuite struct {
	suite.Suite

	Logger *logrus.Logger

	Transport *MockTransport
	Settings  *settings.MemoryStore
	MotionIn  chan sensor.RotationRate
	Options   *engine.Options
	Engine    *engine.Engine

	cancel context.CancelFunc
}

// SetupSuite creates the shared debug logger.
func (s *EngineSuite) SetupSuite() {
	s.Logger = logrus.New()
	s.Logger.SetLevel(logrus.DebugLevel)
}

// FastOptions returns engine options with timings shrunk for tests.
// The discovery timeout is disabled; tests that need it set it explicitly.
func FastOptions() *engine.Options {
	opts := engine.DefaultOptions()
	opts.ProximityInterval = 2 * time.Millisecond
	opts.TextInterval = time.Millisecond
	opts.DiscoveryTimeout = -1
	opts.SubscriberBuffer = 1024
	return opts
}

// SetupTest creates a fresh transport and engine for each test method.
func (s *EngineSuite) SetupTest() {
	s.Transport = NewMockTransport()
	s.Settings = settings.NewMemoryStore()
	s.MotionIn = make(chan sensor.RotationRate, 64)
	if s.Options == nil {
		s.Options = FastOptions()
	}
	s.startEngine()
}

func (s *EngineSuite) startEngine() {
	s.Engine = engine.New(engine.Config{
		Transport: s.Transport,
		Settings:  s.Settings,
		Motion:    &sensor.ChannelSource{C: s.MotionIn},
		Options:   s.Options,
		Logger:    s.Logger,
	})

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.Engine.Start(ctx)
}

// Restart replaces the running engine with one built from opts, keeping the
// transport and settings.
func (s *EngineSuite) Restart(opts *engine.Options) {
	s.Require().NoError(s.Engine.Close())
	s.cancel()
	s.Options = opts
	s.startEngine()
}

// TearDownTest stops the engine.
func (s *EngineSuite) TearDownTest() {
	if s.Engine != nil {
		s.Require().NoError(s.Engine.Close())
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.Options = nil
}

// Ctx returns a context bounded by WaitTimeout.
func (s *EngineSuite) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
	s.T().Cleanup(cancel)
	return ctx
}

// PowerOn reports the radio as powered and waits for the engine to see it.
func (s *EngineSuite) PowerOn() {
	s.Transport.Emit(device.RadioStateChanged{PoweredOn: true})
	s.Require().Eventually(func() bool {
		return s.Engine.Snapshot().RadioOn
	}, WaitTimeout, PollInterval, "engine MUST observe the radio powering on")
}

// WaitState waits until the engine reaches state.
func (s *EngineSuite) WaitState(state engine.ConnectionState) {
	s.Require().Eventually(func() bool {
		return s.Engine.State() == state
	}, WaitTimeout, PollInterval, "engine MUST reach state %s (now %s)", state, s.Engine.State())
}

// Discovered returns an advertisement of the accessory.
func Discovered() device.PeripheralDiscovered {
	return device.PeripheralDiscovered{
		Address:  AccessoryAddress,
		Name:     AccessoryName,
		RSSI:     -50,
		Services: []string{device.NormalizeUUID(ServiceUUID)},
	}
}

// ConnectReady drives the engine from Idle to Ready through the full handshake.
func (s *EngineSuite) ConnectReady() {
	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))
	s.Require().Equal(engine.StateScanning, s.Engine.State())

	s.Transport.Emit(Discovered())
	s.WaitState(engine.StateConnecting)

	s.Transport.Emit(device.LinkConnected{Address: AccessoryAddress})
	s.WaitState(engine.StateDiscovering)

	s.Transport.Emit(device.ChannelResolved{
		Service:        device.NormalizeUUID(ServiceUUID),
		Characteristic: device.NormalizeUUID(WriteUUID),
	})
	s.WaitState(engine.StateReady)
	s.Require().True(s.Engine.Ready())
}

// WaitWrites waits until at least n writes were recorded and returns them all.
func (s *EngineSuite) WaitWrites(n int) []string {
	s.Require().Eventually(func() bool {
		return len(s.Transport.Writes()) >= n
	}, WaitTimeout, PollInterval, "expected at least %d writes, got %v", n, s.Transport.Writes())
	return s.Transport.Writes()
}

// NoWritesFor asserts nothing is written during d.
func (s *EngineSuite) NoWritesFor(d time.Duration) {
	before := len(s.Transport.Writes())
	time.Sleep(d)
	s.Equal(before, len(s.Transport.Writes()), "no writes expected, got %v", s.Transport.Writes()[before:])
}

// Sync waits until the engine handled every event emitted so far.
func (s *EngineSuite) Sync() {
	s.Require().NoError(s.Engine.Flush(s.Ctx()))
}
