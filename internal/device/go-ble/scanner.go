package goble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/ringchan"
	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// DiscoveryEventType marks if the accessory was newly discovered or updated
type DiscoveryEventType int

const (
	EventNew DiscoveryEventType = iota
	EventUpdated
)

// DiscoveryEvent is published for every accepted advertisement.
type DiscoveryEvent struct {
	Type       DiscoveryEventType
	Peripheral device.PeripheralDiscovered
	SeenAt     time.Time
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration `default:"10s"`
	DuplicateFilter bool          `default:"true"`
	// ServiceUUID limits results to accessories advertising it; empty accepts all
	ServiceUUID string
	AllowList   []string
	BlockList   []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	opts := &ScanOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// Scanner lists nearby accessories. It owns its own central and is independent
// of any Transport.
type Scanner struct {
	devices *hashmap.Map[string, device.PeripheralDiscovered]
	events  *ringchan.RingChannel[DiscoveryEvent]
	logger  *logrus.Logger
}

// NewScanner creates a new BLE scanner
func NewScanner(logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		events: ringchan.New[DiscoveryEvent](100),
		logger: logger,
	}
}

// Events streams discovery events while Scan runs. Slow readers lose the oldest.
func (s *Scanner) Events() <-chan DiscoveryEvent {
	return s.events.C()
}

// Scan performs discovery for opts.Duration or until ctx is done and returns
// the accepted accessories sorted by signal strength, strongest first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) ([]device.PeripheralDiscovered, error) {
	if opts == nil {
		opts = DefaultScanOptions()
	}
	s.devices = hashmap.New[string, device.PeripheralDiscovered]()

	central, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	defer func() {
		if err := central.Stop(); err != nil {
			s.logger.WithField("error", err).Debug("Failed to stop BLE central after scan")
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"duration":     opts.Duration,
		"service_uuid": opts.ServiceUUID,
	}).Info("Starting BLE scan...")

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	err = central.Scan(scanCtx, !opts.DuplicateFilter, func(p device.PeripheralDiscovered) {
		s.handleDiscovery(p, opts)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")

	result := make([]device.PeripheralDiscovered, 0, s.devices.Len())
	s.devices.Range(func(_ string, p device.PeripheralDiscovered) bool {
		result = append(result, p)
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].RSSI != result[j].RSSI {
			return result[i].RSSI > result[j].RSSI
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// handleDiscovery updates an existing entry or adds a new one
func (s *Scanner) handleDiscovery(p device.PeripheralDiscovered, opts *ScanOptions) {
	if !shouldInclude(p, opts) {
		return
	}

	event := DiscoveryEvent{Peripheral: p, SeenAt: time.Now()}
	if _, existing := s.devices.Get(p.Address); existing {
		event.Type = EventUpdated
	} else {
		s.logger.WithFields(logrus.Fields{
			"device":  p.Name,
			"address": p.Address,
			"rssi":    p.RSSI,
		}).Info("Discovered new device")
		event.Type = EventNew
	}
	s.devices.Set(p.Address, p)

	s.events.Send(event)
}

// shouldInclude applies allow/block/service filters
func shouldInclude(p device.PeripheralDiscovered, opts *ScanOptions) bool {
	for _, blocked := range opts.BlockList {
		if p.Address == blocked {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if p.Address == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.ServiceUUID != "" && !p.AdvertisesService(opts.ServiceUUID) {
		return false
	}
	return true
}
