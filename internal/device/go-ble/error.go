package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SinghProbjot/Synapse/internal/device"
)

// darwinPoweredOff is what CoreBluetooth reports when the radio is disabled.
const darwinPoweredOff = "central manager has invalid state: have=4 want=5: is Bluetooth turned on?"

// errorPatterns maps lower-cased fragments of go-ble and BlueZ messages to link
// errors. Order matters: the first match wins.
var errorPatterns = []struct {
	fragment string
	target   *device.LinkError
}{
	{"bluetooth is turned off", device.ErrBluetoothOff},
	{"powered off", device.ErrBluetoothOff},
	{"no such device", device.ErrBluetoothOff},
	{"device already connected", device.ErrAlreadyConnected},
	{"device not connected", device.ErrNotConnected},
	{"disconnected", device.ErrNotConnected},
	{"connection is not initialized", device.ErrNotInitialized},
}

// NormalizeError wraps backend errors into link errors so callers can use
// errors.Is against the device sentinels. The original error text is kept.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if device.FaultOf(err) != 0 || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	if msg == darwinPoweredOff {
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	}
	lower := strings.ToLower(msg)
	for _, p := range errorPatterns {
		if strings.Contains(lower, p.fragment) {
			return fmt.Errorf("%w: %v", p.target, err)
		}
	}
	return err
}
