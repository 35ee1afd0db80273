package device

// Transport is the radio link used by the bridge engine.
//
// Every method is fire-and-notify: it returns immediately and the outcome is
// reported later as a LinkEvent on Events(). Implementations deliver events from
// their own goroutines; consumers serialize them onto a single loop.
type Transport interface {
	// Events returns the stream of asynchronous link notifications.
	Events() <-chan LinkEvent

	// StartScan begins discovery. Returns ErrBluetoothOff when the radio is unavailable.
	StartScan(serviceUUID string) error
	// StopScan ends discovery. Safe to call when not scanning.
	StopScan()

	// Connect dials the peripheral; reports LinkConnected or LinkDisconnected.
	Connect(address string)
	// Discover resolves the write channel; reports ChannelResolved or ChannelNotFound.
	Discover(serviceUUID, characteristicUUID string)
	// Disconnect tears down the link. Safe to call repeatedly.
	Disconnect()

	// Write performs an unacknowledged write to the resolved channel.
	Write(data []byte) error
	// ReadSignalStrength requests an RSSI reading; reports SignalRead.
	ReadSignalStrength()
}

// LinkEvent is an asynchronous notification from a Transport.
type LinkEvent interface {
	linkEvent()
}

// RadioStateChanged reports the radio power state.
type RadioStateChanged struct {
	PoweredOn bool
	Err       error
}

// PeripheralDiscovered reports an advertisement seen while scanning.
type PeripheralDiscovered struct {
	Address  string
	Name     string
	RSSI     int
	Services []string // normalized service UUIDs
}

// ScanStopped reports that discovery ended on its own, Err is nil on a clean stop.
type ScanStopped struct {
	Err error
}

// LinkConnected reports an established link-layer connection.
type LinkConnected struct {
	Address string
}

// ChannelResolved reports that the service and write characteristic were found.
type ChannelResolved struct {
	Service        string
	Characteristic string
}

// ChannelNotFound reports a failed service or characteristic discovery.
type ChannelNotFound struct {
	Err error
}

// LinkDisconnected reports that the link dropped or a dial failed.
type LinkDisconnected struct {
	Address string
	Err     error
}

// SignalRead reports the result of ReadSignalStrength.
type SignalRead struct {
	RSSI int
	Err  error
}

func (RadioStateChanged) linkEvent()    {}
func (PeripheralDiscovered) linkEvent() {}
func (ScanStopped) linkEvent()          {}
func (LinkConnected) linkEvent()        {}
func (ChannelResolved) linkEvent()      {}
func (ChannelNotFound) linkEvent()      {}
func (LinkDisconnected) linkEvent()     {}
func (SignalRead) linkEvent()           {}

// AdvertisesService reports whether the discovered peripheral advertises the given service.
// Both sides are compared in normalized form.
func (p PeripheralDiscovered) AdvertisesService(serviceUUID string) bool {
	want := NormalizeUUID(serviceUUID)
	if want == "" {
		return false
	}
	for _, s := range p.Services {
		if NormalizeUUID(s) == want {
			return true
		}
	}
	return false
}
