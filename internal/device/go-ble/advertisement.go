package goble

import (
	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/go-ble/ble"
)

// discoveryFromAdvertisement converts a go-ble advertisement into the transport event.
// Services from the overflow area are included since some stacks move 128-bit UUIDs there.
func discoveryFromAdvertisement(adv ble.Advertisement) device.PeripheralDiscovered {
	services := make([]string, 0, len(adv.Services())+len(adv.OverflowService()))
	for _, svc := range adv.Services() {
		services = append(services, device.NormalizeUUID(svc.String()))
	}
	for _, svc := range adv.OverflowService() {
		services = append(services, device.NormalizeUUID(svc.String()))
	}

	addr := ""
	if a := adv.Addr(); a != nil {
		addr = a.String()
	}

	return device.PeripheralDiscovered{
		Address:  addr,
		Name:     adv.LocalName(),
		RSSI:     adv.RSSI(),
		Services: services,
	}
}
