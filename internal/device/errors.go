package device

import (
	"errors"
	"fmt"
)

// NotFoundError reports a GATT service or characteristic missing from the
// accessory. UUIDs holds the lookup path: the service first, then the
// characteristic when one was requested.
type NotFoundError struct {
	Resource string
	UUIDs    []string
}

func (e *NotFoundError) Error() string {
	switch len(e.UUIDs) {
	case 0:
		return e.Resource + " not found"
	case 1:
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	last := len(e.UUIDs) - 1
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[last], e.UUIDs[0])
}

// LinkFault classifies why the radio link refused an operation.
type LinkFault uint8

const (
	FaultNotConnected LinkFault = iota + 1
	FaultAlreadyConnected
	FaultNotInitialized
	FaultRadioOff
)

var faultText = map[LinkFault]string{
	FaultNotConnected:     "not connected",
	FaultAlreadyConnected: "already connected",
	FaultNotInitialized:   "link not initialized",
	FaultRadioOff:         "bluetooth is turned off",
}

func (f LinkFault) String() string {
	if s, ok := faultText[f]; ok {
		return s
	}
	return fmt.Sprintf("link fault %d", uint8(f))
}

// LinkError is a fault with optional backend detail. errors.Is matches any
// LinkError carrying the same fault, so wrapped detail never hides the class.
type LinkError struct {
	Fault  LinkFault
	Detail string
}

func (e *LinkError) Error() string {
	if e.Detail == "" {
		return e.Fault.String()
	}
	return e.Fault.String() + ": " + e.Detail
}

func (e *LinkError) Is(target error) bool {
	t, ok := target.(*LinkError)
	return ok && t.Fault == e.Fault
}

var (
	ErrNotConnected     = &LinkError{Fault: FaultNotConnected}
	ErrAlreadyConnected = &LinkError{Fault: FaultAlreadyConnected}
	ErrNotInitialized   = &LinkError{Fault: FaultNotInitialized}
	ErrBluetoothOff     = &LinkError{Fault: FaultRadioOff}

	ErrTimeout     = errors.New("operation timed out")
	ErrUnsupported = errors.New("operation not supported by this transport")
)

// FaultOf returns the fault carried by err, or zero when err is not a link error.
func FaultOf(err error) LinkFault {
	var lerr *LinkError
	if errors.As(err, &lerr) {
		return lerr.Fault
	}
	return 0
}
