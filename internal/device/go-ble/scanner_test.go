package goble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_FiltersAndSorts(t *testing.T) {
	svc := device.NormalizeUUID(testService)
	withCentral(t, &fakeCentral{adverts: []device.PeripheralDiscovered{
		{Address: "AA", Name: "far", RSSI: -80, Services: []string{svc}},
		{Address: "BB", Name: "other", RSSI: -30, Services: []string{"180d"}},
		{Address: "CC", Name: "near", RSSI: -40, Services: []string{svc}},
		{Address: "AA", Name: "far", RSSI: -70, Services: []string{svc}},
	}}, nil)

	s := NewScanner(logrus.New())
	opts := DefaultScanOptions()
	opts.Duration = 20 * time.Millisecond
	opts.ServiceUUID = testService

	got, err := s.Scan(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, got, 2, "non-matching advertisers MUST be filtered out")
	assert.Equal(t, "CC", got[0].Address, "results MUST be sorted strongest first")
	assert.Equal(t, "AA", got[1].Address)
	assert.Equal(t, -70, got[1].RSSI, "a repeated advertisement MUST update the entry")

	var types []DiscoveryEventType
	for len(s.Events()) > 0 {
		types = append(types, (<-s.Events()).Type)
	}
	assert.Equal(t, []DiscoveryEventType{EventNew, EventNew, EventUpdated}, types)
}

func TestScanner_BlockList(t *testing.T) {
	withCentral(t, &fakeCentral{adverts: []device.PeripheralDiscovered{
		{Address: "AA"}, {Address: "BB"},
	}}, nil)

	s := NewScanner(nil)
	opts := DefaultScanOptions()
	opts.Duration = 10 * time.Millisecond
	opts.BlockList = []string{"AA"}

	got, err := s.Scan(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BB", got[0].Address)
}

func TestScanner_RadioOff(t *testing.T) {
	withCentral(t, nil, NormalizeError(errors.New(darwinPoweredOff)))

	_, err := NewScanner(nil).Scan(context.Background(), nil)
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
}

func TestDefaultScanOptions(t *testing.T) {
	opts := DefaultScanOptions()
	assert.Equal(t, 10*time.Second, opts.Duration)
	assert.True(t, opts.DuplicateFilter)
}
