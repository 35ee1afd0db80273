package goble

import (
	"context"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/go-ble/ble"
)

// Central is the slice of a ble.Device the transport relies on.
type Central interface {
	Scan(ctx context.Context, allowDup bool, handler func(device.PeripheralDiscovered)) error
	Dial(ctx context.Context, address string) (Peripheral, error)
	Stop() error
}

// Peripheral is the slice of a ble.Client the transport relies on.
type Peripheral interface {
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	ReadRSSI() int
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// DeviceFactory creates the platform central (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (Central, error) {
	dev, err := newPlatformDevice()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &bleCentral{dev: dev}, nil
}

// bleCentral adapts ble.Device to Central
type bleCentral struct {
	dev ble.Device
}

func (c *bleCentral) Scan(ctx context.Context, allowDup bool, handler func(device.PeripheralDiscovered)) error {
	err := c.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(discoveryFromAdvertisement(adv))
	})
	return NormalizeError(err)
}

func (c *bleCentral) Dial(ctx context.Context, address string) (Peripheral, error) {
	client, err := c.dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &blePeripheral{Client: client}, nil
}

func (c *bleCentral) Stop() error {
	return c.dev.Stop()
}

// blePeripheral adapts ble.Client to Peripheral. Clients that cannot report
// disconnection get a channel that never fires.
type blePeripheral struct {
	ble.Client
}

func (p *blePeripheral) Disconnected() <-chan struct{} {
	if dc, ok := p.Client.(interface{ Disconnected() <-chan struct{} }); ok {
		return dc.Disconnected()
	}
	return make(chan struct{})
}
