package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/groutine"
	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// TransportOptions tunes the go-ble transport.
type TransportOptions struct {
	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration `default:"10s"`
	// RadioPollInterval is how often an unavailable radio is re-checked.
	RadioPollInterval time.Duration `default:"2s"`
	// EventBuffer is the capacity of the event channel.
	EventBuffer int `default:"64"`
}

// DefaultTransportOptions returns options with defaults applied.
func DefaultTransportOptions() *TransportOptions {
	opts := &TransportOptions{}
	defaults.SetDefaults(opts)
	return opts
}

type scanHandle struct {
	cancel context.CancelFunc
}

// Transport is a device.Transport on top of go-ble.
//
// Every link operation runs in its own goroutine and reports back through Events().
// A generation counter, bumped on Disconnect, drops results that belong to a link
// the caller already abandoned.
type Transport struct {
	logger *logrus.Logger
	opts   *TransportOptions
	events chan device.LinkEvent

	mu         sync.Mutex
	central    Central
	generation uint64
	scan       *scanHandle
	dialCancel context.CancelFunc
	peripheral Peripheral
	writeChar  *ble.Characteristic
	address    string

	writeMutex sync.Mutex
	wg         sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

var _ device.Transport = (*Transport)(nil)

// NewTransport creates a transport. Call Open before use.
func NewTransport(opts *TransportOptions, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultTransportOptions()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		logger:     logger,
		opts:       opts,
		events:     make(chan device.LinkEvent, opts.EventBuffer),
		// generation 0 is reserved for radio events
		generation: 1,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Open starts probing the radio. The first RadioStateChanged is reported as soon
// as the platform central is created or fails.
func (t *Transport) Open(ctx context.Context) {
	groutine.GoTracked(ctx, &t.wg, "ble-radio-watch", func(ctx context.Context) {
		t.watchRadio(ctx)
	})
}

// watchRadio retries DeviceFactory until a central is available.
func (t *Transport) watchRadio(ctx context.Context) {
	ticker := time.NewTicker(t.opts.RadioPollInterval)
	defer ticker.Stop()

	reported := false
	for {
		central, err := DeviceFactory()
		err = NormalizeError(err)
		if err == nil {
			t.mu.Lock()
			t.central = central
			t.mu.Unlock()
			t.logger.Info("BLE radio is available")
			t.emit(0, device.RadioStateChanged{PoweredOn: true})
			return
		}

		if !reported {
			t.logger.WithField("error", err).Warn("BLE radio is unavailable, will keep retrying")
			t.emit(0, device.RadioStateChanged{PoweredOn: false, Err: err})
			reported = true
		}

		select {
		case <-ctx.Done():
			return
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Events returns the stream of link notifications.
func (t *Transport) Events() <-chan device.LinkEvent {
	return t.events
}

// StartScan begins discovery. Advertisements are reported unfiltered; matching
// against serviceUUID is left to the consumer.
func (t *Transport) StartScan(serviceUUID string) error {
	t.mu.Lock()
	central := t.central
	if central == nil {
		t.mu.Unlock()
		return device.ErrBluetoothOff
	}
	if t.scan != nil {
		t.mu.Unlock()
		t.logger.Debug("Scan already in progress")
		return nil
	}
	ctx, cancel := context.WithCancel(t.ctx)
	handle := &scanHandle{cancel: cancel}
	t.scan = handle
	gen := t.generation
	t.mu.Unlock()

	t.logger.WithField("service_uuid", serviceUUID).Info("Starting BLE scan...")

	groutine.GoTracked(ctx, &t.wg, "ble-scan", func(ctx context.Context) {
		defer cancel()

		err := central.Scan(ctx, false, func(p device.PeripheralDiscovered) {
			t.emit(gen, p)
		})

		t.mu.Lock()
		if t.scan == handle {
			t.scan = nil
		}
		t.mu.Unlock()

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			t.logger.Debug("BLE scan stopped")
			return
		}

		err = NormalizeError(err)
		t.logger.WithField("error", err).Error("BLE scan failed")
		t.emit(gen, device.ScanStopped{Err: err})
		if errors.Is(err, device.ErrBluetoothOff) {
			t.emit(0, device.RadioStateChanged{PoweredOn: false, Err: err})
		}
	})
	return nil
}

// StopScan ends discovery. Safe to call when not scanning.
func (t *Transport) StopScan() {
	t.mu.Lock()
	handle := t.scan
	t.scan = nil
	t.mu.Unlock()

	if handle != nil {
		handle.cancel()
	}
}

// Connect dials the peripheral and reports LinkConnected or LinkDisconnected.
func (t *Transport) Connect(address string) {
	t.mu.Lock()
	central := t.central
	gen := t.generation
	if central == nil {
		t.mu.Unlock()
		t.emitAsync(gen, device.LinkDisconnected{Address: address, Err: device.ErrBluetoothOff})
		return
	}
	ctx, cancel := context.WithTimeout(t.ctx, t.opts.ConnectTimeout)
	t.dialCancel = cancel
	t.mu.Unlock()

	t.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": t.opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	groutine.GoTracked(ctx, &t.wg, "ble-dial", func(ctx context.Context) {
		defer cancel()

		p, err := central.Dial(ctx, address)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: dial %s: %v", device.ErrTimeout, address, err)
			}
			t.logger.WithFields(logrus.Fields{
				"address": address,
				"error":   err,
			}).Error("Failed to dial BLE device")
			t.emit(gen, device.LinkDisconnected{Address: address, Err: err})
			return
		}

		t.mu.Lock()
		if t.generation != gen {
			t.mu.Unlock()
			t.logger.WithField("address", address).Debug("Dial completed after disconnect, dropping link")
			_ = p.CancelConnection()
			return
		}
		t.peripheral = p
		t.address = address
		t.dialCancel = nil
		t.mu.Unlock()

		t.watchLink(gen, address, p)
		t.emit(gen, device.LinkConnected{Address: address})
	})
}

// watchLink reports an unsolicited disconnect of p.
func (t *Transport) watchLink(gen uint64, address string, p Peripheral) {
	groutine.GoTracked(t.ctx, &t.wg, "ble-link-monitor", func(ctx context.Context) {
		select {
		case <-p.Disconnected():
		case <-ctx.Done():
			return
		}

		t.mu.Lock()
		current := t.generation == gen && t.peripheral == p
		if current {
			t.peripheral = nil
			t.writeChar = nil
		}
		t.mu.Unlock()

		if current {
			t.logger.WithField("address", address).Warn("BLE link reported disconnection")
			t.emit(gen, device.LinkDisconnected{Address: address, Err: device.ErrNotConnected})
		}
	})
}

// Discover resolves the write channel and reports ChannelResolved or ChannelNotFound.
func (t *Transport) Discover(serviceUUID, characteristicUUID string) {
	t.mu.Lock()
	p := t.peripheral
	gen := t.generation
	t.mu.Unlock()

	if p == nil {
		t.emitAsync(gen, device.ChannelNotFound{Err: device.ErrNotConnected})
		return
	}

	groutine.GoTracked(t.ctx, &t.wg, "ble-discover", func(ctx context.Context) {

		c, err := t.resolveChannel(p, serviceUUID, characteristicUUID)
		if err != nil {
			t.logger.WithFields(logrus.Fields{
				"service_uuid": serviceUUID,
				"char_uuid":    characteristicUUID,
				"error":        err,
			}).Error("Failed to resolve write channel")
			t.emit(gen, device.ChannelNotFound{Err: err})
			return
		}

		t.mu.Lock()
		if t.generation == gen && t.peripheral == p {
			t.writeChar = c
		}
		t.mu.Unlock()

		t.logger.WithFields(logrus.Fields{
			"service_uuid": serviceUUID,
			"char_uuid":    characteristicUUID,
		}).Info("Write channel resolved")
		t.emit(gen, device.ChannelResolved{
			Service:        device.NormalizeUUID(serviceUUID),
			Characteristic: device.NormalizeUUID(characteristicUUID),
		})
	})
}

func (t *Transport) resolveChannel(p Peripheral, serviceUUID, characteristicUUID string) (*ble.Characteristic, error) {
	ids, err := device.ValidateUUID(serviceUUID, characteristicUUID)
	if err != nil {
		return nil, err
	}
	svcID, err := ble.Parse(ids[0])
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", serviceUUID, err)
	}
	charID, err := ble.Parse(ids[1])
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", characteristicUUID, err)
	}

	services, err := p.DiscoverServices([]ble.UUID{svcID})
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", NormalizeError(err))
	}
	var svc *ble.Service
	for _, s := range services {
		if s.UUID.Equal(svcID) {
			svc = s
			break
		}
	}
	if svc == nil {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{serviceUUID}}
	}

	chars, err := p.DiscoverCharacteristics([]ble.UUID{charID}, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics: %w", NormalizeError(err))
	}
	for _, c := range chars {
		if !c.UUID.Equal(charID) {
			continue
		}
		if c.Property&(ble.CharWriteNR|ble.CharWrite) == 0 {
			return nil, fmt.Errorf("%w: characteristic %s is not writable", device.ErrUnsupported, characteristicUUID)
		}
		return c, nil
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{serviceUUID, characteristicUUID}}
}

// Disconnect tears down the link and invalidates every in-flight operation.
// Safe to call repeatedly.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.generation++
	handle := t.scan
	t.scan = nil
	dialCancel := t.dialCancel
	t.dialCancel = nil
	p := t.peripheral
	address := t.address
	t.peripheral = nil
	t.writeChar = nil
	t.address = ""
	t.mu.Unlock()

	if handle != nil {
		handle.cancel()
	}
	if dialCancel != nil {
		dialCancel()
	}
	if p == nil {
		return
	}

	groutine.GoTracked(context.Background(), &t.wg, "ble-cancel-connection", func(ctx context.Context) {
		if err := p.CancelConnection(); err != nil {
			t.logger.WithFields(logrus.Fields{
				"address": address,
				"error":   NormalizeError(err),
			}).Warn("Failed to cancel BLE connection")
			return
		}
		t.logger.WithField("address", address).Info("BLE device disconnected")
	})
}

// Write sends data without response when the characteristic allows it.
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	p, c := t.peripheral, t.writeChar
	t.mu.Unlock()

	if p == nil || c == nil {
		return device.ErrNotConnected
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	noRsp := c.Property&ble.CharWriteNR != 0
	if err := p.WriteCharacteristic(c, data, noRsp); err != nil {
		return fmt.Errorf("write failed: %w", NormalizeError(err))
	}
	return nil
}

// ReadSignalStrength reads RSSI off the caller's goroutine and reports SignalRead.
func (t *Transport) ReadSignalStrength() {
	t.mu.Lock()
	p := t.peripheral
	gen := t.generation
	t.mu.Unlock()

	if p == nil {
		t.emitAsync(gen, device.SignalRead{Err: device.ErrNotConnected})
		return
	}

	groutine.GoTracked(t.ctx, &t.wg, "ble-rssi", func(ctx context.Context) {
		t.emit(gen, device.SignalRead{RSSI: p.ReadRSSI()})
	})
}

// Close disconnects, stops the central and waits for transport goroutines.
func (t *Transport) Close() error {
	t.Disconnect()
	t.cancel()
	t.wg.Wait()

	t.mu.Lock()
	central := t.central
	t.central = nil
	t.mu.Unlock()

	if central != nil {
		if err := central.Stop(); err != nil {
			return fmt.Errorf("failed to stop BLE central: %w", NormalizeError(err))
		}
	}
	return nil
}

// emit delivers ev unless it belongs to an abandoned generation.
// Radio events use generation 0 and are never stale.
func (t *Transport) emit(gen uint64, ev device.LinkEvent) {
	if gen != 0 {
		t.mu.Lock()
		stale := gen != t.generation
		t.mu.Unlock()
		if stale {
			t.logger.WithField("event", fmt.Sprintf("%T", ev)).Debug("Dropping stale link event")
			return
		}
	}

	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

// emitAsync is emit for callers that may be the event consumer itself.
func (t *Transport) emitAsync(gen uint64, ev device.LinkEvent) {
	groutine.GoTracked(t.ctx, &t.wg, "ble-emit", func(ctx context.Context) {
		t.emit(gen, ev)
	})
}
