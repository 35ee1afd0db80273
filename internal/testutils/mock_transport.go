package testutils

import (
	"sync"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockTransport is a scriptable device.Transport.
//
// Every method is recorded through testify's mock.Mock with permissive defaults,
// so tests only configure what they care about:
//
//	mt := testutils.NewMockTransport()
//	mt.StartScanCall.Return(device.ErrBluetoothOff)
//	...
//	mt.AssertNumberOfCalls(t, "StartScan", 1)
//
// Link events are injected with Emit. Successful writes are captured and
// returned by Writes, with their arrival times in WriteTimes.
type MockTransport struct {
	mock.Mock

	events chan device.LinkEvent

	mu     sync.Mutex
	writes []string
	times  []time.Time
	rssi   []int
	reads  int

	StartScanCall *mock.Call
	WriteCall     *mock.Call
}

var _ device.Transport = (*MockTransport)(nil)

// NewMockTransport creates a transport whose operations all succeed and emit nothing.
func NewMockTransport() *MockTransport {
	m := &MockTransport{events: make(chan device.LinkEvent, 256)}

	m.StartScanCall = m.On("StartScan", mock.Anything).Return(nil).Maybe()
	m.On("StopScan").Return().Maybe()
	m.On("Connect", mock.Anything).Return().Maybe()
	m.On("Discover", mock.Anything, mock.Anything).Return().Maybe()
	m.On("Disconnect").Return().Maybe()
	m.WriteCall = m.On("Write", mock.Anything).Return(nil).Maybe()
	m.On("ReadSignalStrength").Return().Maybe()

	return m
}

func (m *MockTransport) Events() <-chan device.LinkEvent {
	return m.events
}

func (m *MockTransport) StartScan(serviceUUID string) error {
	return m.Called(serviceUUID).Error(0)
}

func (m *MockTransport) StopScan() {
	m.Called()
}

func (m *MockTransport) Connect(address string) {
	m.Called(address)
}

func (m *MockTransport) Discover(serviceUUID, characteristicUUID string) {
	m.Called(serviceUUID, characteristicUUID)
}

func (m *MockTransport) Disconnect() {
	m.Called()
}

// Write records data as a string so expectations read like the wire grammar.
func (m *MockTransport) Write(data []byte) error {
	if err := m.Called(string(data)).Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	m.writes = append(m.writes, string(data))
	m.times = append(m.times, time.Now())
	m.mu.Unlock()
	return nil
}

// ReadSignalStrength emits the next scripted reading, repeating the last one
// once the script is exhausted. Without a script nothing is emitted.
func (m *MockTransport) ReadSignalStrength() {
	m.Called()

	m.mu.Lock()
	m.reads++
	if len(m.rssi) == 0 {
		m.mu.Unlock()
		return
	}
	v := m.rssi[0]
	if len(m.rssi) > 1 {
		m.rssi = m.rssi[1:]
	}
	m.mu.Unlock()

	// never block the poller
	select {
	case m.events <- device.SignalRead{RSSI: v}:
	default:
	}
}

// ScriptRSSI sets the readings returned by ReadSignalStrength.
func (m *MockTransport) ScriptRSSI(values ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssi = append([]int(nil), values...)
}

// SignalReads returns how many times ReadSignalStrength was called.
func (m *MockTransport) SignalReads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Emit injects a link event as if it came from the radio.
func (m *MockTransport) Emit(ev device.LinkEvent) {
	m.events <- ev
}

// Writes returns a copy of every successful write, in order.
func (m *MockTransport) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

// WriteTimes returns when each successful write arrived, parallel to Writes.
func (m *MockTransport) WriteTimes() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.times...)
}
