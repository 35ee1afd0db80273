package engine

import (
	"context"
	"math"

	"github.com/SinghProbjot/Synapse/internal/groutine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/SinghProbjot/Synapse/internal/settings"
	"github.com/sirupsen/logrus"
)

// MotionSmoother turns rotation rates into integer pointer deltas. The fractional
// part of every delta is carried into the next sample so slow tilts still move
// the pointer eventually.
//
// Axes are cross-mapped: yaw rate (Y) drives horizontal motion, pitch rate (X)
// drives vertical motion.
type MotionSmoother struct {
	sensitivity float64
	signX       float64
	signY       float64

	residualX float64
	residualY float64
}

// NewMotionSmoother creates a smoother with zero residuals.
func NewMotionSmoother(cs settings.ControlSettings) *MotionSmoother {
	m := &MotionSmoother{
		sensitivity: settings.ClampSensitivity(cs.GyroSensitivity),
		signX:       1,
		signY:       1,
	}
	if cs.InvertX {
		m.signX = -1
	}
	if cs.InvertY {
		m.signY = -1
	}
	return m
}

// Step consumes one sample and returns the whole-unit deltas to send.
// Non-finite samples are ignored so they never reach the residuals.
func (m *MotionSmoother) Step(rate sensor.RotationRate) (dx, dy int) {
	if !finite(rate.X) || !finite(rate.Y) {
		return 0, 0
	}
	totalX := rate.Y*m.sensitivity*m.signX + m.residualX
	totalY := rate.X*m.sensitivity*m.signY + m.residualY

	sendX := math.Trunc(totalX)
	sendY := math.Trunc(totalY)

	m.residualX = totalX - sendX
	m.residualY = totalY - sendY

	return int(sendX), int(sendY)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Residual returns the carried fractional remainder per axis.
func (m *MotionSmoother) Residual() (x, y float64) {
	return m.residualX, m.residualY
}

// Reset clears the carried remainder.
func (m *MotionSmoother) Reset() {
	m.residualX, m.residualY = 0, 0
}

// motionLoop is an active smoother bound to a sample stream.
type motionLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// motionEnded is posted when a sample stream closes by itself.
type motionEnded struct {
	loop *motionLoop
}

// startMotion subscribes to the sensor and streams MOVE commands. Loop-owned.
func (e *Engine) startMotion() error {
	if e.motion != nil {
		return nil
	}
	if e.motionSource == nil {
		return ErrNoMotionSource
	}

	cs := e.controlSettings()
	ctx, cancel := context.WithCancel(e.ctx)
	samples, err := e.motionSource.Subscribe(ctx)
	if err != nil {
		cancel()
		e.record(logrus.ErrorLevel, nil, "Gyro mouse unavailable: %v", err)
		return err
	}

	smoother := NewMotionSmoother(cs)
	loop := &motionLoop{cancel: cancel, done: make(chan struct{})}

	groutine.Go(ctx, "motion-smoother", func(ctx context.Context) {
		defer close(loop.done)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-samples:
				if !ok {
					// posted from a fresh goroutine: stopMotion may be waiting on done
					groutine.Go(e.ctx, "motion-ended", func(context.Context) {
						e.post(motionEnded{loop: loop})
					})
					return
				}
				if ctx.Err() != nil {
					return
				}
				dx, dy := smoother.Step(s)
				if dx == 0 && dy == 0 {
					continue
				}
				if err := e.Send(protocol.Move{DX: dx, DY: dy}); err != nil {
					e.logger.WithFields(logrus.Fields{
						"error": err,
						"dx":    dx,
						"dy":    dy,
					}).Debug("Motion send failed")
				}
			}
		}
	})

	e.motion = loop
	e.setFeature(FeatureMotion, true)
	e.record(logrus.InfoLevel, logrus.Fields{"sensitivity": cs.GyroSensitivity}, "Gyro mouse on (sensitivity %.0f)", cs.GyroSensitivity)
	return nil
}

// stopMotion cancels the smoother and waits for it, discarding its residual.
func (e *Engine) stopMotion() {
	if e.motion == nil {
		return
	}
	e.motion.cancel()
	<-e.motion.done
	e.motion = nil
	e.setFeature(FeatureMotion, false)
	e.record(logrus.InfoLevel, nil, "Gyro mouse off")
}
