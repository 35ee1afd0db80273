package engine

import (
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/sirupsen/logrus"
)

// DefaultProximityThreshold is the signal strength (dBm) below which the
// companion computer is locked.
const DefaultProximityThreshold = -85

// proximityMonitor is a one-shot auto-lock trigger. Loop-owned.
type proximityMonitor struct {
	threshold int
	armed     bool
	lock      protocol.Command
	task      *periodicTask
}

// observe records a reading and reports whether it fires the trigger.
// Firing disarms the monitor and stops its poll task.
func (p *proximityMonitor) observe(rssi int) bool {
	if !p.armed || rssi >= p.threshold {
		return false
	}
	p.disarm()
	return true
}

func (p *proximityMonitor) disarm() {
	p.task.Stop()
	p.task = nil
	p.armed = false
}

// startProximity arms the monitor and starts polling signal strength. Loop-owned.
func (e *Engine) startProximity() error {
	if e.prox.armed {
		return nil
	}

	cs := e.controlSettings()
	lock, err := protocol.ResolveShortcut(cs.TargetPlatform, protocol.ShortcutLock)
	if err != nil {
		e.record(logrus.WarnLevel, nil, "Proximity lock unavailable on %s: %v", cs.TargetPlatform, err)
		return err
	}

	e.prox.lock = lock
	e.prox.armed = true
	e.prox.task = startPeriodic(e.ctx, "proximity-monitor", e.opts.ProximityInterval, e.transport.ReadSignalStrength)

	e.setFeature(FeatureProximity, true)
	e.record(logrus.InfoLevel, logrus.Fields{
		"threshold": e.prox.threshold,
		"interval":  e.opts.ProximityInterval,
	}, "Proximity lock armed (below %d dBm)", e.prox.threshold)
	return nil
}

// stopProximity disarms unconditionally. Loop-owned.
func (e *Engine) stopProximity() {
	wasArmed := e.prox.armed
	e.prox.disarm()
	if wasArmed {
		e.setFeature(FeatureProximity, false)
		e.record(logrus.InfoLevel, nil, "Proximity lock disarmed")
	}
}

// onSignal handles a signal strength reading. Loop-owned.
func (e *Engine) onSignal(rssi int) {
	e.mu.Lock()
	e.status.LastRSSI = rssi
	e.status.HasRSSI = true
	e.mu.Unlock()
	e.publish(SignalStrength{RSSI: rssi})

	if !e.prox.observe(rssi) {
		return
	}

	e.record(logrus.WarnLevel, logrus.Fields{"rssi": rssi}, "Signal weak (%d dBm), locking computer", rssi)
	e.sendRecorded(e.prox.lock)
	e.setFeature(FeatureProximity, false)
}
