package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/macro"
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFormatEvent(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	at := time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC)

	line, ok := formatEvent(engine.StateChanged{From: engine.StateDiscovering, To: engine.StateReady, Address: "AA"})
	assert.True(t, ok)
	assert.Equal(t, "[Ready] AA", line)

	line, ok = formatEvent(engine.LogAppended{Entry: engine.LogEntry{Time: at, Level: logrus.InfoLevel, Message: "Sent KEY:ESC"}})
	assert.True(t, ok)
	assert.Equal(t, "13:04:05 Sent KEY:ESC", line)

	line, _ = formatEvent(engine.FeatureChanged{Feature: engine.FeatureJiggler, Active: true})
	assert.Equal(t, "jiggler on", line)

	line, _ = formatEvent(engine.SignalStrength{RSSI: -71})
	assert.Equal(t, "signal -71 dBm", line)
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"radio off", engine.ErrRadioOff, "Bluetooth is off. Turn it on and try again."},
		{"device radio off", fmt.Errorf("dial: %w", device.ErrBluetoothOff), "Bluetooth is off. Turn it on and try again."},
		{"connection lost", ErrConnectionLost, "connection to the accessory was lost (out of range or powered off?)"},
		{"not ready", engine.ErrNotReady, "not connected to the accessory"},
		{"no email", engine.ErrNoEmail, "no email configured; set userEmail in the settings file"},
		{"no motion", engine.ErrNoMotionSource, "no motion source; use gyro-replay with a recorded rotation file"},
		{"unsupported shortcut", protocol.ErrUnsupportedShortcut, "unsupported shortcut; check targetPlatform in the settings file"},
		{"unknown slot", fmt.Errorf("%w: M4", macro.ErrUnknownSlot), "unknown macro slot: M4; run 'synapse macro list' to see the deck"},
		{"deadline", context.DeadlineExceeded, "operation timed out"},
		{"other", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", formatVersion("1.2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}
