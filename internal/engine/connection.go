package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/sirupsen/logrus"
)

type operation int

const (
	opConnect operation = iota
	opDisconnect
	opToggle
	opActivate
	opDeactivate
	opToggleFeature
	opTypeText
	opFlush
)

// request is a user action executed on the loop.
type request struct {
	op      operation
	feature Feature
	text    string
	reply   chan error
}

// discoveryTimeout fires when a connection attempt has not reached Ready in time.
type discoveryTimeout struct {
	cycle uint64
}

// dispatch is the single transition function of the engine loop.
func (e *Engine) dispatch(in any) {
	switch ev := in.(type) {
	case request:
		ev.reply <- e.handleRequest(ev)

	case device.RadioStateChanged:
		e.onRadio(ev)
	case device.PeripheralDiscovered:
		e.onDiscovered(ev)
	case device.ScanStopped:
		e.onScanStopped(ev)
	case device.LinkConnected:
		e.onLinkConnected(ev)
	case device.ChannelResolved:
		e.onChannelResolved(ev)
	case device.ChannelNotFound:
		e.onChannelNotFound(ev)
	case device.LinkDisconnected:
		e.onLinkDisconnected(ev)
	case device.SignalRead:
		if ev.Err != nil {
			e.logger.WithField("error", ev.Err).Debug("Signal strength read failed")
			return
		}
		e.onSignal(ev.RSSI)

	case discoveryTimeout:
		e.onDiscoveryTimeout(ev)
	case motionEnded:
		if e.motion == ev.loop {
			e.stopMotion()
		}

	default:
		e.logger.WithField("event", fmt.Sprintf("%T", in)).Warn("Ignoring unknown engine event")
	}
}

func (e *Engine) handleRequest(r request) error {
	switch r.op {
	case opConnect:
		return e.connect()
	case opDisconnect:
		return e.disconnect()
	case opToggle:
		if e.state.linkActive() {
			return e.disconnect()
		}
		return e.connect()
	case opActivate:
		return e.activate(r.feature)
	case opDeactivate:
		return e.deactivate(r.feature)
	case opToggleFeature:
		if e.featureActive(r.feature) {
			return e.deactivate(r.feature)
		}
		return e.activate(r.feature)
	case opTypeText:
		return e.typeText(r.text)
	case opFlush:
		e.drainEvents()
		return nil
	}
	return fmt.Errorf("unknown operation %d", r.op)
}

// drainEvents dispatches every transport event already queued.
func (e *Engine) drainEvents() {
	events := e.transport.Events()
	for {
		select {
		case ev := <-events:
			e.dispatch(ev)
		default:
			return
		}
	}
}

func (e *Engine) connect() error {
	if e.state.linkActive() {
		e.logger.WithField("state", e.state.String()).Debug("Connect ignored, link already in progress")
		return nil
	}
	if !e.radioOn {
		e.setState(StateRadioUnavailable)
		e.record(logrus.WarnLevel, nil, "Bluetooth is off, turn it on to connect")
		return ErrRadioOff
	}

	if err := e.transport.StartScan(e.opts.ServiceUUID); err != nil {
		if errors.Is(err, device.ErrBluetoothOff) {
			e.setRadio(false)
			e.setState(StateRadioUnavailable)
			e.record(logrus.WarnLevel, nil, "Bluetooth is off, turn it on to connect")
			return ErrRadioOff
		}
		e.record(logrus.ErrorLevel, logrus.Fields{"error": err}, "Scan failed: %v", err)
		return fmt.Errorf("failed to start scan: %w", err)
	}

	e.cycle++
	e.armDiscoveryTimeout()
	e.setState(StateScanning)
	e.record(logrus.InfoLevel, logrus.Fields{"service_uuid": e.opts.ServiceUUID}, "Scanning for Synapse...")
	return nil
}

func (e *Engine) disconnect() error {
	if !e.state.linkActive() {
		return nil
	}
	wasScanning := e.state == StateScanning

	e.setState(StateDisconnecting)
	e.teardown()
	if wasScanning {
		e.transport.StopScan()
	}
	e.transport.Disconnect()
	e.clearTarget()
	e.setState(StateIdle)
	e.record(logrus.InfoLevel, nil, "Disconnected")
	return nil
}

// dropLink returns to Idle after a failure. Loop-owned.
func (e *Engine) dropLink() {
	e.teardown()
	e.transport.Disconnect()
	e.clearTarget()
	e.setState(StateIdle)
}

// teardown stops everything that depends on the link. Idempotent.
func (e *Engine) teardown() {
	e.ready.Store(false)
	e.stopDiscoveryTimeout()
	e.stopMotion()
	e.stopProximity()
	e.bulk.Cancel()
	e.resetJiggler()
	e.handle = nil
}

func (e *Engine) clearTarget() {
	e.target = ""
	e.targetName = ""
}

func (e *Engine) onRadio(ev device.RadioStateChanged) {
	e.setRadio(ev.PoweredOn)

	if ev.PoweredOn {
		if e.state == StateRadioUnavailable {
			e.setState(StateIdle)
			e.record(logrus.InfoLevel, nil, "Bluetooth is on")
		}
		return
	}

	if e.state.linkActive() {
		e.teardown()
		e.transport.Disconnect()
		e.clearTarget()
	}
	if e.state != StateRadioUnavailable {
		e.setState(StateRadioUnavailable)
		fields := logrus.Fields{}
		if ev.Err != nil {
			fields["error"] = ev.Err
		}
		e.record(logrus.WarnLevel, fields, "Bluetooth is off")
	}
}

func (e *Engine) onDiscovered(ev device.PeripheralDiscovered) {
	if e.state != StateScanning {
		return
	}
	if !ev.AdvertisesService(e.opts.ServiceUUID) {
		e.logger.WithFields(logrus.Fields{
			"address": ev.Address,
			"name":    ev.Name,
		}).Trace("Ignoring peripheral without the Synapse service")
		return
	}
	if e.opts.TargetAddress != "" && !strings.EqualFold(ev.Address, e.opts.TargetAddress) {
		e.logger.WithField("address", ev.Address).Debug("Ignoring accessory, address is not pinned")
		return
	}

	e.transport.StopScan()
	e.target = ev.Address
	e.targetName = ev.Name
	e.setState(StateConnecting)
	e.record(logrus.InfoLevel, logrus.Fields{
		"address": ev.Address,
		"rssi":    ev.RSSI,
	}, "Found %s, connecting...", displayName(ev.Name, ev.Address))
	e.transport.Connect(ev.Address)
}

func (e *Engine) onScanStopped(ev device.ScanStopped) {
	if e.state != StateScanning {
		return
	}
	if errors.Is(ev.Err, device.ErrBluetoothOff) {
		e.onRadio(device.RadioStateChanged{PoweredOn: false, Err: ev.Err})
		return
	}

	e.dropLink()
	if ev.Err != nil {
		e.record(logrus.ErrorLevel, logrus.Fields{"error": ev.Err}, "Scan stopped: %v", ev.Err)
		return
	}
	e.record(logrus.WarnLevel, nil, "Scan stopped before the accessory was found")
}

func (e *Engine) onLinkConnected(ev device.LinkConnected) {
	if e.state != StateConnecting || ev.Address != e.target {
		e.logger.WithFields(logrus.Fields{
			"address": ev.Address,
			"state":   e.state.String(),
		}).Debug("Ignoring stale link connection")
		return
	}

	e.setState(StateDiscovering)
	e.record(logrus.InfoLevel, nil, "Link up, resolving write channel...")
	e.transport.Discover(e.opts.ServiceUUID, e.opts.CharacteristicUUID)
}

func (e *Engine) onChannelResolved(ev device.ChannelResolved) {
	if e.state != StateDiscovering {
		return
	}

	e.stopDiscoveryTimeout()
	e.handle = &deviceHandle{
		address:        e.target,
		name:           e.targetName,
		service:        ev.Service,
		characteristic: ev.Characteristic,
	}
	e.ready.Store(true)
	e.setState(StateReady)
	e.record(logrus.InfoLevel, logrus.Fields{
		"address":   e.handle.address,
		"char_uuid": e.handle.characteristic,
	}, "Connected to %s", displayName(e.handle.name, e.handle.address))
}

func (e *Engine) onChannelNotFound(ev device.ChannelNotFound) {
	if e.state != StateDiscovering {
		return
	}
	err := fmt.Errorf("%w: %v", ErrServiceNotFound, ev.Err)
	e.dropLink()
	e.record(logrus.ErrorLevel, logrus.Fields{"error": ev.Err}, "%v", err)
}

func (e *Engine) onLinkDisconnected(ev device.LinkDisconnected) {
	switch e.state {
	case StateConnecting, StateDiscovering, StateReady:
	default:
		return
	}
	if ev.Address != "" && e.target != "" && ev.Address != e.target {
		return
	}

	wasReady := e.state == StateReady
	name := displayName(e.targetName, e.target)
	e.dropLink()

	fields := logrus.Fields{"address": ev.Address}
	if ev.Err != nil {
		fields["error"] = ev.Err
	}
	if wasReady {
		e.record(logrus.WarnLevel, fields, "%v: %s disconnected", ErrLinkDropped, name)
		return
	}
	e.record(logrus.ErrorLevel, fields, "Connection to %s failed: %v", name, ev.Err)
}

func (e *Engine) armDiscoveryTimeout() {
	e.stopDiscoveryTimeout()
	if e.opts.DiscoveryTimeout <= 0 {
		return
	}
	cycle := e.cycle
	e.timeout = time.AfterFunc(e.opts.DiscoveryTimeout, func() {
		e.post(discoveryTimeout{cycle: cycle})
	})
}

func (e *Engine) stopDiscoveryTimeout() {
	if e.timeout != nil {
		e.timeout.Stop()
		e.timeout = nil
	}
}

func (e *Engine) onDiscoveryTimeout(ev discoveryTimeout) {
	if ev.cycle != e.cycle {
		return
	}
	switch e.state {
	case StateScanning, StateConnecting, StateDiscovering:
	default:
		return
	}

	wasScanning := e.state == StateScanning
	e.timeout = nil
	if wasScanning {
		e.transport.StopScan()
	}
	e.dropLink()
	e.record(logrus.WarnLevel, logrus.Fields{"timeout": e.opts.DiscoveryTimeout}, "%v after %s", ErrDiscoveryTimeout, e.opts.DiscoveryTimeout)
}

func displayName(name, address string) string {
	switch {
	case name != "" && address != "":
		return fmt.Sprintf("%s (%s)", name, address)
	case name != "":
		return name
	case address != "":
		return address
	}
	return "accessory"
}
