//go:build test

package engine_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/SinghProbjot/Synapse/internal/settings"
	"github.com/SinghProbjot/Synapse/internal/testutils"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	testutils.EngineSuite
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (s *EngineTestSuite) logMessages() []string {
	entries := s.Engine.Log()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func (s *EngineTestSuite) requireLogged(substr string) {
	s.Require().Eventually(func() bool {
		for _, m := range s.logMessages() {
			if strings.Contains(m, substr) {
				return true
			}
		}
		return false
	}, testutils.WaitTimeout, testutils.PollInterval, "log feed MUST contain %q, got %v", substr, s.logMessages())
}

// waitMotionDrained waits until the sensor forwarder picked up every queued sample.
func (s *EngineTestSuite) waitMotionDrained() {
	s.Require().Eventually(func() bool {
		return len(s.MotionIn) == 0
	}, testutils.WaitTimeout, testutils.PollInterval)
}

// --- connection lifecycle ---

func (s *EngineTestSuite) TestConnectWithRadioOff() {
	// GOAL: Connect with the radio off never scans and never writes
	//
	// TEST SCENARIO: radio never powers on → Connect → ErrRadioOff, RadioUnavailable, no StartScan

	err := s.Engine.Connect(s.Ctx())

	s.Require().ErrorIs(err, engine.ErrRadioOff)
	s.Equal(engine.StateRadioUnavailable, s.Engine.State())
	s.Transport.AssertNotCalled(s.T(), "StartScan", mock.Anything)
	s.Empty(s.Transport.Writes(), "nothing MUST be written while the radio is off")
	s.requireLogged("Bluetooth is off")

	s.PowerOn()
	s.WaitState(engine.StateIdle)
}

func (s *EngineTestSuite) TestStartScanReportsRadioOff() {
	// GOAL: A scan refused by the radio maps to RadioUnavailable
	//
	// TEST SCENARIO: radio on → StartScan fails with ErrBluetoothOff → ErrRadioOff

	s.PowerOn()
	s.Transport.StartScanCall.Return(device.ErrBluetoothOff)

	err := s.Engine.Connect(s.Ctx())

	s.Require().ErrorIs(err, engine.ErrRadioOff)
	s.Equal(engine.StateRadioUnavailable, s.Engine.State())
	s.False(s.Engine.Snapshot().RadioOn)
}

func (s *EngineTestSuite) TestNonMatchingPeripheralIgnored() {
	// GOAL: Peripherals without the Synapse service never trigger a connect
	//
	// TEST SCENARIO: scanning → unrelated advertisement → still Scanning, no Connect call

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))

	s.Transport.Emit(device.PeripheralDiscovered{
		Address:  "11:22:33:44:55:66",
		Name:     "Headphones",
		RSSI:     -30,
		Services: []string{"180d"},
	})
	s.Sync()

	s.Equal(engine.StateScanning, s.Engine.State())
	s.Transport.AssertNotCalled(s.T(), "Connect", mock.Anything)
}

func (s *EngineTestSuite) TestPinnedAddressSkipsOtherAccessories() {
	// GOAL: A pinned address ignores other accessories advertising the service
	//
	// TEST SCENARIO: pin address → foreign Synapse advertises → ignored → pinned one advertises → Connecting

	opts := testutils.FastOptions()
	opts.TargetAddress = strings.ToLower(testutils.AccessoryAddress)
	s.Restart(opts)

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))

	other := testutils.Discovered()
	other.Address = "11:22:33:44:55:66"
	s.Transport.Emit(other)
	s.Sync()
	s.Equal(engine.StateScanning, s.Engine.State(), "an accessory at another address MUST be ignored")

	s.Transport.Emit(testutils.Discovered())
	s.WaitState(engine.StateConnecting)
	s.Transport.AssertCalled(s.T(), "Connect", testutils.AccessoryAddress)
}

func (s *EngineTestSuite) TestFullHandshake() {
	// GOAL: Discovery, link and channel resolution lead to Ready
	//
	// TEST SCENARIO: connect → discover → link → channel → Ready with address recorded

	s.ConnectReady()

	s.Transport.AssertCalled(s.T(), "StartScan", testutils.ServiceUUID)
	s.Transport.AssertCalled(s.T(), "StopScan")
	s.Transport.AssertCalled(s.T(), "Connect", testutils.AccessoryAddress)
	s.Transport.AssertCalled(s.T(), "Discover", testutils.ServiceUUID, testutils.WriteUUID)

	snap := s.Engine.Snapshot()
	s.True(snap.Connected)
	s.Equal(testutils.AccessoryAddress, snap.Address)
	s.Equal(testutils.AccessoryName, snap.Name)
	s.requireLogged("Connected to Synapse (AA:BB:CC:DD:EE:FF)")
}

func (s *EngineTestSuite) TestConnectAndSendKey() {
	// GOAL: A key sent on a Ready link reaches the wire and the log feed
	//
	// TEST SCENARIO: Ready → Key("ESC") → "KEY:ESC" written, "Sent KEY:ESC" logged

	s.ConnectReady()

	s.Require().NoError(s.Engine.Key("ESC"))

	s.Equal([]string{"KEY:ESC"}, s.Transport.Writes())
	s.Equal("Sent KEY:ESC", s.logMessages()[0], "newest log entry MUST describe the sent command")
	s.EqualValues(1, s.Engine.Snapshot().Sent)
}

func (s *EngineTestSuite) TestDoubleToggleFromIdle() {
	// GOAL: Toggle twice returns to Idle after exactly one scan
	//
	// TEST SCENARIO: Idle → toggle → Scanning → toggle → Idle, StartScan once, StopScan called

	s.PowerOn()

	s.Require().NoError(s.Engine.ToggleConnection(s.Ctx()))
	s.Equal(engine.StateScanning, s.Engine.State())

	s.Require().NoError(s.Engine.ToggleConnection(s.Ctx()))
	s.Equal(engine.StateIdle, s.Engine.State())

	s.Transport.AssertNumberOfCalls(s.T(), "StartScan", 1)
	s.Transport.AssertCalled(s.T(), "StopScan")
	s.Transport.AssertCalled(s.T(), "Disconnect")
}

func (s *EngineTestSuite) TestConnectWhileScanningIsNoop() {
	// GOAL: Repeated Connect does not restart the scan
	//
	// TEST SCENARIO: Connect twice → one StartScan

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))
	s.Require().NoError(s.Engine.Connect(s.Ctx()))

	s.Transport.AssertNumberOfCalls(s.T(), "StartScan", 1)
	s.Equal(engine.StateScanning, s.Engine.State())
}

func (s *EngineTestSuite) TestStaleLinkConnectionIgnored() {
	// GOAL: A link for another address does not advance the handshake
	//
	// TEST SCENARIO: Connecting to the accessory → LinkConnected for a stranger → still Connecting

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))
	s.Transport.Emit(testutils.Discovered())
	s.WaitState(engine.StateConnecting)

	s.Transport.Emit(device.LinkConnected{Address: "11:22:33:44:55:66"})
	s.Sync()

	s.Equal(engine.StateConnecting, s.Engine.State())
	s.Transport.AssertNotCalled(s.T(), "Discover", mock.Anything, mock.Anything)
}

func (s *EngineTestSuite) TestChannelNotFound() {
	// GOAL: A missing write channel aborts the attempt
	//
	// TEST SCENARIO: Discovering → ChannelNotFound → Idle, error logged, link released

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))
	s.Transport.Emit(testutils.Discovered())
	s.WaitState(engine.StateConnecting)
	s.Transport.Emit(device.LinkConnected{Address: testutils.AccessoryAddress})
	s.WaitState(engine.StateDiscovering)

	s.Transport.Emit(device.ChannelNotFound{Err: &device.NotFoundError{Resource: "characteristic", UUIDs: []string{testutils.WriteUUID}}})
	s.WaitState(engine.StateIdle)

	s.False(s.Engine.Ready())
	s.Transport.AssertCalled(s.T(), "Disconnect")
	s.requireLogged(engine.ErrServiceNotFound.Error())
}

func (s *EngineTestSuite) TestConnectFailureBeforeReady() {
	// GOAL: A failed dial returns to Idle
	//
	// TEST SCENARIO: Connecting → LinkDisconnected with error → Idle, failure logged

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))
	s.Transport.Emit(testutils.Discovered())
	s.WaitState(engine.StateConnecting)

	s.Transport.Emit(device.LinkDisconnected{Address: testutils.AccessoryAddress, Err: device.ErrTimeout})
	s.WaitState(engine.StateIdle)
	s.requireLogged("Connection to Synapse (AA:BB:CC:DD:EE:FF) failed")
}

func (s *EngineTestSuite) TestDiscoveryTimeout() {
	// GOAL: An attempt that never reaches Ready is abandoned
	//
	// TEST SCENARIO: short timeout → Connect → no advertisement → Idle, StopScan, timeout logged

	opts := testutils.FastOptions()
	opts.DiscoveryTimeout = 50 * time.Millisecond
	s.Restart(opts)

	s.PowerOn()
	s.Require().NoError(s.Engine.Connect(s.Ctx()))
	s.WaitState(engine.StateIdle)

	s.Transport.AssertCalled(s.T(), "StopScan")
	s.requireLogged(engine.ErrDiscoveryTimeout.Error())
}

func (s *EngineTestSuite) TestDiscoveryTimeoutDisarmedOnReady() {
	// GOAL: The timeout never fires on an established link
	//
	// TEST SCENARIO: timeout armed → Ready → wait past the timeout → still Ready

	opts := testutils.FastOptions()
	opts.DiscoveryTimeout = 150 * time.Millisecond
	s.Restart(opts)

	s.ConnectReady()
	time.Sleep(250 * time.Millisecond)
	s.Sync()

	s.Equal(engine.StateReady, s.Engine.State())
}

func (s *EngineTestSuite) TestRadioOffWhileReady() {
	// GOAL: Losing the radio tears down the link
	//
	// TEST SCENARIO: Ready → radio off → RadioUnavailable, commands suppressed → radio on → Idle

	s.ConnectReady()

	s.Transport.Emit(device.RadioStateChanged{PoweredOn: false})
	s.WaitState(engine.StateRadioUnavailable)
	s.False(s.Engine.Ready())

	s.Require().NoError(s.Engine.Key("ESC"))
	s.Empty(s.Transport.Writes())

	s.PowerOn()
	s.WaitState(engine.StateIdle)
}

func (s *EngineTestSuite) TestCloseStopsEngine() {
	// GOAL: Close ends subscriptions and refuses further requests
	//
	// TEST SCENARIO: subscribe → Ready → Close → channel closed, Connect returns ErrClosed

	events, _ := s.Engine.Subscribe()
	s.ConnectReady()

	s.Require().NoError(s.Engine.Close())
	s.Require().Eventually(func() bool {
		for {
			select {
			case _, ok := <-events:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, testutils.WaitTimeout, testutils.PollInterval, "subscription MUST be closed")

	s.ErrorIs(s.Engine.Connect(s.Ctx()), engine.ErrClosed)
	s.Transport.AssertCalled(s.T(), "Disconnect")
}

func (s *EngineTestSuite) TestSubscribeStateChanges() {
	// GOAL: Subscribers observe every state transition in order
	//
	// TEST SCENARIO: subscribe → handshake → Scanning, Connecting, Discovering, Ready

	events, stop := s.Engine.Subscribe()
	defer stop()

	s.ConnectReady()

	var states []engine.ConnectionState
	timeout := time.After(testutils.WaitTimeout)
	for len(states) < 4 {
		select {
		case ev := <-events:
			if sc, ok := ev.(engine.StateChanged); ok {
				states = append(states, sc.To)
			}
		case <-timeout:
			s.FailNow("timed out waiting for state events", "got %v", states)
		}
	}

	s.Equal([]engine.ConnectionState{
		engine.StateScanning,
		engine.StateConnecting,
		engine.StateDiscovering,
		engine.StateReady,
	}, states)
}

// --- sending ---

func (s *EngineTestSuite) TestSendWhileNotReadyIsSuppressed() {
	// GOAL: Commands before Ready are dropped silently
	//
	// TEST SCENARIO: Idle → Key, Move, Char → no error, no writes, Suppressed counts them

	s.Require().NoError(s.Engine.Key("ESC"))
	s.Require().NoError(s.Engine.Send(protocol.Move{DX: 3, DY: -1}))
	s.Require().NoError(s.Engine.Send(protocol.Char{Rune: 'a'}))

	s.Empty(s.Transport.Writes())
	s.Transport.AssertNotCalled(s.T(), "Write", mock.Anything)
	s.EqualValues(3, s.Engine.Snapshot().Suppressed)
}

func (s *EngineTestSuite) TestEmptyMoveIsNoop() {
	s.ConnectReady()

	s.Require().NoError(s.Engine.Send(protocol.Move{}))

	s.Empty(s.Transport.Writes())
	s.Zero(s.Engine.Snapshot().Suppressed)
}

func (s *EngineTestSuite) TestInvalidCommandRejected() {
	s.ConnectReady()

	err := s.Engine.Send(protocol.Key{Code: "WIN L"})

	s.ErrorIs(err, protocol.ErrInvalidCommand)
	s.Empty(s.Transport.Writes())
}

func (s *EngineTestSuite) TestWriteFailures() {
	// GOAL: Transport errors surface, except a lost link which is suppressed
	//
	// TEST SCENARIO: Write fails → Key returns error; Write reports not connected → nil, suppressed

	s.ConnectReady()

	s.Transport.WriteCall.Return(errors.New("gatt busy"))
	s.Error(s.Engine.Key("ESC"))
	s.requireLogged("Send failed")

	s.Transport.WriteCall.Return(device.ErrNotConnected)
	s.NoError(s.Engine.Key("ESC"))
	s.EqualValues(1, s.Engine.Snapshot().Suppressed)
}

func (s *EngineTestSuite) TestQuickActions() {
	s.ConnectReady()

	s.Require().NoError(s.Engine.Click(protocol.ButtonRight))
	s.Require().NoError(s.Engine.Media(protocol.MediaVolumeUp))
	for _, k := range engine.QuickKeys {
		s.Require().NoError(s.Engine.Key(k))
	}

	s.Equal([]string{"CLICK:RIGHT", "MEDIA:VOL_UP", "KEY:ESC", "KEY:TAB", "KEY:WIN", "KEY:ALT"}, s.Transport.Writes())
}

// --- shortcuts ---

func (s *EngineTestSuite) TestShortcutsPerPlatform() {
	// GOAL: Shortcuts resolve against the configured platform at send time
	//
	// TEST SCENARIO: Windows lock/close → macOS lock/close

	s.ConnectReady()

	s.Require().NoError(s.Engine.Lock())
	s.Require().NoError(s.Engine.CloseApp())

	s.Settings.Set(settings.KeyTargetPlatform, "macOS")
	s.Require().NoError(s.Engine.Lock())
	s.Require().NoError(s.Engine.CloseApp())

	s.Equal([]string{"KEY:WIN+L", "KEY:ALT+F4", "KEY:CTRL+CMD+Q", "KEY:CMD+Q"}, s.Transport.Writes())
}

func (s *EngineTestSuite) TestUnsupportedShortcutNotSent() {
	// GOAL: Shortcuts the wire grammar cannot express are logged, never sent
	//
	// TEST SCENARIO: Ready → copy shortcut → ErrUnsupportedShortcut, warning logged, no writes

	s.ConnectReady()

	err := s.Engine.Shortcut(protocol.ShortcutCopy)

	s.ErrorIs(err, engine.ErrUnsupportedShortcut)
	s.Empty(s.Transport.Writes())
	s.requireLogged("Shortcut copy is not supported on Windows")
}

// --- bulk text ---

func (s *EngineTestSuite) TestTypeTextInOrder() {
	// GOAL: Text is typed one code point per write, in order, across batches
	//
	// TEST SCENARIO: Ready → TypeText("hé") + TypeText("y\b") → h, é, y, backspace

	s.ConnectReady()

	s.Require().NoError(s.Engine.TypeText(s.Ctx(), "hé"))
	s.Require().NoError(s.Engine.TypeText(s.Ctx(), "y\b"))

	writes := s.WaitWrites(4)
	s.Equal([]string{"h", "é", "y", "\b"}, writes)
	s.Require().Eventually(func() bool {
		return s.Engine.Snapshot().PendingText == 0
	}, testutils.WaitTimeout, testutils.PollInterval)
	s.requireLogged("Typing 2 characters")
}

func (s *EngineTestSuite) TestTypeTextPacing() {
	// GOAL: Character i goes out no earlier than start + i*interval and
	// lateness does not accumulate over a long string
	//
	// TEST SCENARIO: 40 chars at 10ms → every write on or after its slot,
	// last write within a few intervals of its slot

	const (
		n        = 40
		interval = 10 * time.Millisecond
		slack    = 5 * interval
	)

	opts := testutils.FastOptions()
	opts.TextInterval = interval
	s.Restart(opts)
	s.ConnectReady()

	start := time.Now()
	s.Require().NoError(s.Engine.TypeText(s.Ctx(), strings.Repeat("p", n)))
	s.WaitWrites(n)

	times := s.Transport.WriteTimes()
	s.Require().Len(times, n)
	for i, at := range times {
		slot := start.Add(time.Duration(i) * interval)
		s.False(at.Before(slot), "write %d MUST NOT precede its slot (early by %s)", i, slot.Sub(at))
	}

	last := times[n-1]
	deadline := times[0].Add(time.Duration(n-1)*interval + slack)
	s.False(last.After(deadline), "last write MUST stay on schedule, drifted by %s", last.Sub(deadline))
}

func (s *EngineTestSuite) TestTypeTextRequiresReady() {
	s.PowerOn()

	s.ErrorIs(s.Engine.TypeText(s.Ctx(), "hello"), engine.ErrNotReady)
	s.Empty(s.Transport.Writes())
}

func (s *EngineTestSuite) TestTypeTextStopsOnDisconnect() {
	// GOAL: Disconnect cuts off queued text
	//
	// TEST SCENARIO: slow typing of 100 chars → Disconnect after a few → no further writes

	opts := testutils.FastOptions()
	opts.TextInterval = 10 * time.Millisecond
	s.Restart(opts)
	s.ConnectReady()

	s.Require().NoError(s.Engine.TypeText(s.Ctx(), strings.Repeat("x", 100)))
	s.WaitWrites(2)
	s.Require().NoError(s.Engine.Disconnect(s.Ctx()))

	sent := len(s.Transport.Writes())
	s.Less(sent, 100)
	s.NoWritesFor(50 * time.Millisecond)
	s.Zero(s.Engine.Snapshot().PendingText)
}

func (s *EngineTestSuite) TestTypeEmail() {
	s.ConnectReady()

	s.ErrorIs(s.Engine.TypeEmail(s.Ctx()), engine.ErrNoEmail)

	s.Settings.Set(settings.KeyUserEmail, "a@b.io")
	s.Require().NoError(s.Engine.TypeEmail(s.Ctx()))

	s.Equal([]string{"a", "@", "b", ".", "i", "o"}, s.WaitWrites(6))
}

// --- features ---

func (s *EngineTestSuite) TestFeaturesRequireReady() {
	s.PowerOn()

	for _, f := range []engine.Feature{engine.FeatureMotion, engine.FeatureProximity, engine.FeatureJiggler} {
		s.ErrorIs(s.Engine.Activate(s.Ctx(), f), engine.ErrNotReady, "feature %s", f)
		s.NoError(s.Engine.Deactivate(s.Ctx(), f), "deactivating %s MUST always be allowed", f)
	}
	s.Empty(s.Transport.Writes())
}

func (s *EngineTestSuite) TestUnknownFeature() {
	s.ConnectReady()

	var unknown *engine.UnknownFeatureError
	s.ErrorAs(s.Engine.Activate(s.Ctx(), engine.Feature("teleport")), &unknown)
}

func (s *EngineTestSuite) TestJiggler() {
	// GOAL: The anti-sleep toggle writes its config and resets on disconnect
	//
	// TEST SCENARIO: on → off → on → disconnect → reconnect → on again

	s.ConnectReady()

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureJiggler))
	s.Require().NoError(s.Engine.ToggleFeature(s.Ctx(), engine.FeatureJiggler))
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureJiggler))
	s.True(s.Engine.Snapshot().Jiggler)

	s.Require().NoError(s.Engine.Disconnect(s.Ctx()))
	s.False(s.Engine.Snapshot().Jiggler, "toggle MUST reset on disconnect")

	s.ConnectReady()
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureJiggler))

	s.Equal([]string{"CFG:Jiggler:1", "CFG:Jiggler:0", "CFG:Jiggler:1", "CFG:Jiggler:1"}, s.Transport.Writes())
}

func (s *EngineTestSuite) TestProximityLocksOnce() {
	// GOAL: A weak signal locks the computer exactly once
	//
	// TEST SCENARIO: readings -60, -90, -95 → one lock command → monitor disarmed

	s.ConnectReady()
	s.Transport.ScriptRSSI(-60, -90, -95)

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureProximity))

	s.Equal([]string{"KEY:WIN+L"}, s.WaitWrites(1))
	s.Require().Eventually(func() bool {
		return !s.Engine.Snapshot().Proximity
	}, testutils.WaitTimeout, testutils.PollInterval, "monitor MUST disarm after firing")

	s.NoWritesFor(30 * time.Millisecond)
	s.Equal([]string{"KEY:WIN+L"}, s.Transport.Writes())
	s.requireLogged("Signal weak (-90 dBm)")

	reads := s.Transport.SignalReads()
	time.Sleep(20 * time.Millisecond)
	s.Equal(reads, s.Transport.SignalReads(), "polling MUST stop after firing")
}

func (s *EngineTestSuite) TestProximityThresholdIsStrict() {
	s.ConnectReady()
	s.Transport.ScriptRSSI(-85)

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureProximity))
	s.Require().Eventually(func() bool {
		return s.Transport.SignalReads() >= 5
	}, testutils.WaitTimeout, testutils.PollInterval)
	s.Sync()

	s.Empty(s.Transport.Writes(), "a reading at the threshold MUST NOT lock")
	s.True(s.Engine.Snapshot().Proximity)
	s.Equal(-85, s.Engine.Snapshot().LastRSSI)
}

func (s *EngineTestSuite) TestProximityStopsPolling() {
	// GOAL: No signal reads happen after deactivation returns
	//
	// TEST SCENARIO: activate → some polls → deactivate → poll count frozen

	s.ConnectReady()

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureProximity))
	s.Require().Eventually(func() bool {
		return s.Transport.SignalReads() >= 2
	}, testutils.WaitTimeout, testutils.PollInterval)

	s.Require().NoError(s.Engine.Deactivate(s.Ctx(), engine.FeatureProximity))
	reads := s.Transport.SignalReads()
	time.Sleep(20 * time.Millisecond)

	s.Equal(reads, s.Transport.SignalReads())
	s.False(s.Engine.Snapshot().Proximity)
}

func (s *EngineTestSuite) TestMotionSendsMoves() {
	s.ConnectReady()
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureMotion))

	s.MotionIn <- sensor.RotationRate{X: 0.5, Y: 1.0}

	s.Equal([]string{"MOVE:40:20"}, s.WaitWrites(1))
}

func (s *EngineTestSuite) TestMotionResidualResetOnReactivate() {
	// GOAL: Fractional motion is not carried across activations
	//
	// TEST SCENARIO: two 0.4 samples → deactivate → reactivate → two 0.4 samples → nothing →
	// one more → MOVE:1:0

	s.ConnectReady()
	small := sensor.RotationRate{Y: 0.01}

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureMotion))
	s.MotionIn <- small
	s.MotionIn <- small
	s.waitMotionDrained()
	s.Require().NoError(s.Engine.Deactivate(s.Ctx(), engine.FeatureMotion))
	time.Sleep(10 * time.Millisecond)

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureMotion))
	s.MotionIn <- small
	s.MotionIn <- small
	s.waitMotionDrained()
	s.NoWritesFor(20 * time.Millisecond)

	s.MotionIn <- small
	s.Equal([]string{"MOVE:1:0"}, s.WaitWrites(1))
}

func (s *EngineTestSuite) TestMotionSendFailureIsLogged() {
	// GOAL: A failed move write is logged at debug and the loop keeps going
	//
	// TEST SCENARIO: writes fail → sample → debug entry with the error →
	// writes recover → next sample reaches the wire

	hook := logtest.NewLocal(s.Logger)
	defer s.Logger.ReplaceHooks(make(logrus.LevelHooks))

	s.ConnectReady()
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureMotion))

	s.Transport.WriteCall.Return(errors.New("gatt busy"))
	s.MotionIn <- sensor.RotationRate{X: 0.5, Y: 1.0}

	s.Require().Eventually(func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.DebugLevel && entry.Message == "Motion send failed" {
				return entry.Data["error"] != nil
			}
		}
		return false
	}, testutils.WaitTimeout, testutils.PollInterval, "failed move MUST be logged at debug")

	s.Transport.WriteCall.Return(nil)
	s.MotionIn <- sensor.RotationRate{X: 0.5, Y: 1.0}
	s.Equal([]string{"MOVE:40:20"}, s.WaitWrites(1))
}

func (s *EngineTestSuite) TestMotionEndsWithStream() {
	s.ConnectReady()
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureMotion))

	close(s.MotionIn)

	s.Require().Eventually(func() bool {
		return !s.Engine.Snapshot().Motion
	}, testutils.WaitTimeout, testutils.PollInterval, "motion MUST deactivate when the sensor stream ends")
}

func (s *EngineTestSuite) TestLinkDropTearsDownEverything() {
	// GOAL: An unsolicited disconnect stops every feature loop
	//
	// TEST SCENARIO: Ready with all features and pending text → link drops → Idle, nothing active,
	// no further writes or polls

	opts := testutils.FastOptions()
	opts.TextInterval = 10 * time.Millisecond
	s.Restart(opts)
	s.ConnectReady()

	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureMotion))
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureProximity))
	s.Require().NoError(s.Engine.Activate(s.Ctx(), engine.FeatureJiggler))
	s.Require().NoError(s.Engine.TypeText(s.Ctx(), strings.Repeat("z", 50)))

	s.Transport.Emit(device.LinkDisconnected{Address: testutils.AccessoryAddress, Err: device.ErrNotConnected})
	s.WaitState(engine.StateIdle)

	snap := s.Engine.Snapshot()
	s.False(snap.Connected)
	s.False(snap.Motion)
	s.False(snap.Proximity)
	s.False(snap.Jiggler)
	s.Zero(snap.PendingText)
	s.False(s.Engine.Ready())

	reads := s.Transport.SignalReads()
	s.MotionIn <- sensor.RotationRate{Y: 1}
	s.NoWritesFor(40 * time.Millisecond)
	s.Equal(reads, s.Transport.SignalReads())
	s.requireLogged(engine.ErrLinkDropped.Error())
}
