package main

import (
	"context"
	"errors"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/macro"
	"github.com/SinghProbjot/Synapse/internal/protocol"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the link dropped while a command was still using it.
	// This is distinct from engine.ErrNotReady, which is returned when the link
	// was never Ready in the first place.
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectFailed wraps the log feed reason of a failed connection attempt.
	ErrConnectFailed = errors.New("could not connect to the accessory")
)

// FormatUserError turns err into a message for the terminal. Known failures
// get a hint; everything else is printed as is.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, engine.ErrRadioOff), errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is off. Turn it on and try again."
	case errors.Is(err, ErrConnectionLost):
		return "connection to the accessory was lost (out of range or powered off?)"
	case errors.Is(err, engine.ErrNotReady):
		return "not connected to the accessory"
	case errors.Is(err, engine.ErrNoEmail):
		return "no email configured; set userEmail in the settings file"
	case errors.Is(err, engine.ErrNoMotionSource):
		return "no motion source; use gyro-replay with a recorded rotation file"
	case errors.Is(err, protocol.ErrUnsupportedShortcut):
		return err.Error() + "; check targetPlatform in the settings file"
	case errors.Is(err, macro.ErrUnknownSlot):
		return err.Error() + "; run 'synapse macro list' to see the deck"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, device.ErrTimeout):
		return "operation timed out"
	}
	return err.Error()
}
