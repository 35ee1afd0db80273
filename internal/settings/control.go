package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/mcuadros/go-defaults"
)

const (
	MinSensitivity     = 10.0
	MaxSensitivity     = 300.0
	DefaultSensitivity = 40.0
)

var errNotFinite = errors.New("value must be a finite number")

// ControlSettings is the snapshot of user preferences the engine reads at
// feature activation time.
type ControlSettings struct {
	TargetPlatform  protocol.Platform `default:"Windows"`
	UserEmail       string
	GyroSensitivity float64 `default:"40"`
	InvertX         bool
	InvertY         bool
}

// DefaultControlSettings returns settings with defaults applied.
func DefaultControlSettings() ControlSettings {
	var cs ControlSettings
	defaults.SetDefaults(&cs)
	return cs
}

// Resolve reads ControlSettings from store. Missing keys keep their defaults.
// Malformed values are skipped and reported together in the returned error,
// the returned settings are always usable.
func Resolve(store Store) (ControlSettings, error) {
	cs := DefaultControlSettings()
	if store == nil {
		return cs, nil
	}

	var errs []error
	if v, ok := store.Get(KeyTargetPlatform); ok {
		p, err := protocol.ParsePlatform(fmt.Sprint(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyTargetPlatform, err))
		} else {
			cs.TargetPlatform = p
		}
	}
	if v, ok := store.Get(KeyUserEmail); ok {
		cs.UserEmail = strings.TrimSpace(fmt.Sprint(v))
	}
	if v, ok := store.Get(KeyGyroSensitivity); ok {
		f, err := toFloat(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyGyroSensitivity, err))
		} else {
			cs.GyroSensitivity = f
		}
	}
	if v, ok := store.Get(KeyInvertX); ok {
		b, err := toBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyInvertX, err))
		} else {
			cs.InvertX = b
		}
	}
	if v, ok := store.Get(KeyInvertY); ok {
		b, err := toBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyInvertY, err))
		} else {
			cs.InvertY = b
		}
	}

	cs.GyroSensitivity = ClampSensitivity(cs.GyroSensitivity)
	return cs, errors.Join(errs...)
}

// ClampSensitivity bounds s to [MinSensitivity, MaxSensitivity]. NaN maps to
// DefaultSensitivity.
func ClampSensitivity(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return DefaultSensitivity
	case s < MinSensitivity:
		return MinSensitivity
	case s > MaxSensitivity:
		return MaxSensitivity
	}
	return s
}

// toFloat converts a store value to a finite float.
func toFloat(v any) (float64, error) {
	f, err := anyToFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w, got %v", errNotFinite, f)
	}
	return f, nil
}

func anyToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	}
	return false, fmt.Errorf("expected a boolean, got %T", v)
}
