package engine

import (
	"errors"
	"fmt"

	"github.com/SinghProbjot/Synapse/internal/protocol"
)

var (
	// ErrRadioOff is returned by Connect while the radio is disabled. No scan is started.
	ErrRadioOff = errors.New("bluetooth is off")

	// ErrServiceNotFound is logged when the accessory service or write channel cannot be resolved.
	ErrServiceNotFound = errors.New("synapse service not found")

	// ErrDiscoveryTimeout is logged when no Ready link is reached in time.
	ErrDiscoveryTimeout = errors.New("discovery timed out")

	// ErrWriteSuppressed marks a command dropped because the link is not Ready.
	// It is never returned to callers.
	ErrWriteSuppressed = errors.New("write suppressed: link not ready")

	// ErrLinkDropped is logged on an unsolicited disconnect.
	ErrLinkDropped = errors.New("link dropped")

	// ErrNotReady is returned by feature operations that need a Ready link.
	ErrNotReady = errors.New("not connected")

	// ErrNoMotionSource is returned when motion is activated without a sensor.
	ErrNoMotionSource = errors.New("no motion sensor available")

	// ErrClosed is returned once the engine has stopped.
	ErrClosed = errors.New("engine closed")

	// ErrUnsupportedShortcut is re-exported for callers that only import engine.
	ErrUnsupportedShortcut = protocol.ErrUnsupportedShortcut
)

// UnknownFeatureError is returned for feature names ParseFeature does not know.
type UnknownFeatureError struct {
	Name string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("unknown feature %q (must be motion, proximity or jiggler)", e.Name)
}
