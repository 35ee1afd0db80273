// Package sensor provides rotation-rate sample streams for the motion smoother.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/SinghProbjot/Synapse/internal/groutine"
	"gopkg.in/yaml.v3"
)

// DefaultInterval is the 60 Hz sampling period.
const DefaultInterval = time.Second / 60

// RotationRate is one gyroscope sample in radians per second.
type RotationRate struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Source produces a sample stream. The returned channel is closed when ctx is
// done or the source runs dry.
type Source interface {
	Subscribe(ctx context.Context) (<-chan RotationRate, error)
}

// ErrNoSamples is returned by a ReplaySource with nothing to replay.
var ErrNoSamples = errors.New("no samples to replay")

// ReplaySource replays recorded samples at a fixed interval. Every subscriber
// gets its own replay from the first sample.
type ReplaySource struct {
	Samples  []RotationRate
	Interval time.Duration
	// Loop restarts from the first sample instead of closing the stream
	Loop bool
}

var _ Source = (*ReplaySource)(nil)

// NewReplaySource replays samples at 60 Hz.
func NewReplaySource(samples []RotationRate) *ReplaySource {
	return &ReplaySource{Samples: samples, Interval: DefaultInterval}
}

type replayFile struct {
	IntervalMs float64        `yaml:"interval_ms"`
	Loop       bool           `yaml:"loop"`
	Samples    []RotationRate `yaml:"samples"`
}

// LoadReplayFile reads a YAML recording:
//
//	interval_ms: 16.6
//	loop: false
//	samples:
//	  - {x: 0, y: 1.0, z: 0}
func LoadReplayFile(path string) (*ReplaySource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}

	var f replayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse recording %s: %w", path, err)
	}
	if len(f.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSamples)
	}

	src := NewReplaySource(f.Samples)
	src.Loop = f.Loop
	if f.IntervalMs > 0 {
		src.Interval = time.Duration(f.IntervalMs * float64(time.Millisecond))
	}
	return src, nil
}

// Subscribe starts a replay.
func (r *ReplaySource) Subscribe(ctx context.Context) (<-chan RotationRate, error) {
	if len(r.Samples) == 0 {
		return nil, ErrNoSamples
	}
	interval := r.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	samples := append([]RotationRate(nil), r.Samples...)
	out := make(chan RotationRate)

	groutine.Go(ctx, "sensor-replay", func(ctx context.Context) {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			if i == len(samples) {
				if !r.Loop {
					return
				}
				i = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case out <- samples[i]:
			case <-ctx.Done():
				return
			}
		}
	})
	return out, nil
}

// ChannelSource adapts an externally fed channel, e.g. from a device driver.
// Concurrent subscribers compete for samples.
type ChannelSource struct {
	C <-chan RotationRate
}

var _ Source = (*ChannelSource)(nil)

// Subscribe forwards samples from C until ctx is done or C is closed.
func (c *ChannelSource) Subscribe(ctx context.Context) (<-chan RotationRate, error) {
	if c.C == nil {
		return nil, errors.New("channel source has no input")
	}

	out := make(chan RotationRate)
	groutine.Go(ctx, "sensor-forward", func(ctx context.Context) {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case s, ok := <-c.C:
				if !ok {
					return
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	})
	return out, nil
}
