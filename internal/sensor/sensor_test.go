package sensor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan RotationRate, n int) []RotationRate {
	t.Helper()
	var got []RotationRate
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case s, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, s)
		case <-timeout:
			require.FailNow(t, "timed out draining samples")
		}
	}
	return got
}

func TestReplaySource_ReplaysInOrderThenCloses(t *testing.T) {
	samples := []RotationRate{{Y: 1}, {Y: 2}, {X: 3}}
	src := &ReplaySource{Samples: samples, Interval: time.Millisecond}

	ch, err := src.Subscribe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, samples, drain(t, ch, 10), "replay MUST emit every sample once, in order")
	_, ok := <-ch
	assert.False(t, ok, "stream MUST close after the last sample")
}

func TestReplaySource_Loop(t *testing.T) {
	src := &ReplaySource{Samples: []RotationRate{{X: 1}, {X: 2}}, Interval: time.Millisecond, Loop: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := src.Subscribe(ctx)
	require.NoError(t, err)

	got := drain(t, ch, 5)
	assert.Equal(t, []RotationRate{{X: 1}, {X: 2}, {X: 1}, {X: 2}, {X: 1}}, got)
}

func TestReplaySource_CancelClosesStream(t *testing.T) {
	src := &ReplaySource{Samples: []RotationRate{{X: 1}}, Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := src.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		require.Fail(t, "stream MUST close after cancellation")
	}
}

func TestReplaySource_Empty(t *testing.T) {
	_, err := NewReplaySource(nil).Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestLoadReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interval_ms: 5
loop: true
samples:
  - {x: 0, y: 1.0, z: 0}
  - {x: 0.5, y: 0, z: 0}
`), 0o600))

	src, err := LoadReplayFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, src.Interval)
	assert.True(t, src.Loop)
	assert.Equal(t, []RotationRate{{Y: 1}, {X: 0.5}}, src.Samples)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("samples: []\n"), 0o600))
	_, err = LoadReplayFile(empty)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestChannelSource(t *testing.T) {
	in := make(chan RotationRate, 2)
	in <- RotationRate{X: 1}
	in <- RotationRate{Y: 1}
	close(in)

	ch, err := (&ChannelSource{C: in}).Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []RotationRate{{X: 1}, {Y: 1}}, drain(t, ch, 5))

	_, err = (&ChannelSource{}).Subscribe(context.Background())
	assert.Error(t, err)
}
