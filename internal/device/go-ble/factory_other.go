//go:build !darwin && !linux

package goble

import (
	"fmt"
	"runtime"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/go-ble/ble"
)

func newPlatformDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE central for %s", device.ErrUnsupported, runtime.GOOS)
}
