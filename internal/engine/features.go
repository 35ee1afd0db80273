package engine

import (
	"github.com/sirupsen/logrus"
)

func (e *Engine) featureActive(f Feature) bool {
	switch f {
	case FeatureMotion:
		return e.motion != nil
	case FeatureProximity:
		return e.prox.armed
	case FeatureJiggler:
		return e.jiggler
	}
	return false
}

func (e *Engine) activate(f Feature) error {
	if e.state != StateReady {
		return ErrNotReady
	}
	switch f {
	case FeatureMotion:
		return e.startMotion()
	case FeatureProximity:
		return e.startProximity()
	case FeatureJiggler:
		e.setJiggler(true)
		return nil
	}
	return &UnknownFeatureError{Name: string(f)}
}

// deactivate never requires Ready: stopping is always allowed.
func (e *Engine) deactivate(f Feature) error {
	switch f {
	case FeatureMotion:
		e.stopMotion()
	case FeatureProximity:
		e.stopProximity()
	case FeatureJiggler:
		if e.state == StateReady {
			e.setJiggler(false)
		} else {
			e.resetJiggler()
		}
	default:
		return &UnknownFeatureError{Name: string(f)}
	}
	return nil
}

func (e *Engine) typeText(text string) error {
	if e.state != StateReady {
		return ErrNotReady
	}
	n := e.bulk.Enqueue(text)
	if n > 0 {
		e.record(logrus.InfoLevel, logrus.Fields{"chars": n}, "Typing %d characters", n)
	}
	return nil
}
