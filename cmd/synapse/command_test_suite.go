//go:build test

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/SinghProbjot/Synapse/internal/device"
	goble "github.com/SinghProbjot/Synapse/internal/device/go-ble"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/go-ble/ble"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/suite"
)

// Test accessory addresses for consistent fake peripheral identification
const (
	TestAccessoryAddress = "00:00:00:00:00:01"
	TestOtherAddress     = "00:00:00:00:00:02"
)

// FakePeripheral is a connected Synapse accessory recording every write.
type FakePeripheral struct {
	mu           sync.Mutex
	services     []*ble.Service
	writes       []string
	rssi         int
	disconnected chan struct{}
}

// NewFakePeripheral exposes the Synapse service with a writable characteristic.
func NewFakePeripheral() *FakePeripheral {
	opts := engine.DefaultOptions()
	char := &ble.Characteristic{
		UUID:     ble.MustParse(device.NormalizeUUID(opts.CharacteristicUUID)),
		Property: ble.CharWriteNR | ble.CharWrite,
	}
	svc := &ble.Service{
		UUID:            ble.MustParse(device.NormalizeUUID(opts.ServiceUUID)),
		Characteristics: []*ble.Characteristic{char},
	}
	return &FakePeripheral{
		services:     []*ble.Service{svc},
		rssi:         -55,
		disconnected: make(chan struct{}),
	}
}

func (p *FakePeripheral) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	return p.services, nil
}

func (p *FakePeripheral) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	return s.Characteristics, nil
}

func (p *FakePeripheral) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes = append(p.writes, string(value))
	return nil
}

func (p *FakePeripheral) ReadRSSI() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rssi
}

// SetRSSI changes the signal strength reported from now on.
func (p *FakePeripheral) SetRSSI(rssi int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rssi = rssi
}

func (p *FakePeripheral) CancelConnection() error { return nil }

func (p *FakePeripheral) Disconnected() <-chan struct{} { return p.disconnected }

// Writes returns a copy of the wire commands written so far.
func (p *FakePeripheral) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

// FakeCentral advertises a fixed set of peripherals and dials the fake accessory.
type FakeCentral struct {
	Adverts    []device.PeripheralDiscovered
	Peripheral *FakePeripheral

	mu     sync.Mutex
	dialed []string
}

func (c *FakeCentral) Scan(ctx context.Context, allowDup bool, handler func(device.PeripheralDiscovered)) error {
	for _, a := range c.Adverts {
		handler(a)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *FakeCentral) Dial(ctx context.Context, address string) (goble.Peripheral, error) {
	c.mu.Lock()
	c.dialed = append(c.dialed, address)
	c.mu.Unlock()
	return c.Peripheral, nil
}

// Dialed returns the addresses dialed so far.
func (c *FakeCentral) Dialed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dialed...)
}

func (c *FakeCentral) Stop() error { return nil }

// SynapseAdvert is the advertisement of the fake accessory.
func SynapseAdvert(address string, rssi int) device.PeripheralDiscovered {
	return device.PeripheralDiscovered{
		Address:  address,
		Name:     "Synapse",
		RSSI:     rssi,
		Services: []string{device.NormalizeUUID(engine.DefaultOptions().ServiceUUID)},
	}
}

// CommandTestSuite runs cobra commands against a fake BLE central.
// All cmd/synapse test suites should embed it.
type CommandTestSuite struct {
	suite.Suite
	Central    *FakeCentral
	Peripheral *FakePeripheral
	Dir        string

	origFactory func() (goble.Central, error)
}

// SetupTest installs a fresh fake central advertising one Synapse accessory.
func (s *CommandTestSuite) SetupTest() {
	s.Peripheral = NewFakePeripheral()
	s.Central = &FakeCentral{
		Adverts:    []device.PeripheralDiscovered{SynapseAdvert(TestAccessoryAddress, -48)},
		Peripheral: s.Peripheral,
	}
	s.Dir = s.T().TempDir()

	s.origFactory = goble.DeviceFactory
	central := s.Central
	goble.DeviceFactory = func() (goble.Central, error) { return central, nil }

	resetFlags(rootCmd)
	// keep commands away from the user's real config files
	s.Require().NoError(rootCmd.PersistentFlags().Set("settings", s.WriteFile("settings.yaml", "")))
	s.Require().NoError(rootCmd.PersistentFlags().Set("macros", s.WriteFile("macros.yaml", "")))
	s.Require().NoError(rootCmd.PersistentFlags().Set("discovery-timeout", "2s"))
}

// TearDownTest restores the platform device factory.
func (s *CommandTestSuite) TearDownTest() {
	goble.DeviceFactory = s.origFactory
}

// WriteFile writes content to name inside the test directory and returns its path.
func (s *CommandTestSuite) WriteFile(name, content string) string {
	path := filepath.Join(s.Dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600), "test file MUST be written")
	return path
}

// ExecuteCommand runs the root command with args, returns stdout and error.
// Progress and status lines written to stderr are discarded.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	return s.ExecuteCommandWithInput("", args...)
}

// ExecuteCommandWithInput is ExecuteCommand with input served on stdin.
func (s *CommandTestSuite) ExecuteCommandWithInput(input string, args ...string) (string, error) {
	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(bytes.NewBufferString(input))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag in the command tree to its default value.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
