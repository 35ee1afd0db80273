package engine

// ConnectionState is the connection manager state. Exactly one value holds at a time.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateRadioUnavailable
	StateScanning
	StateConnecting
	StateDiscovering
	StateReady
	StateDisconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRadioUnavailable:
		return "RadioUnavailable"
	case StateScanning:
		return "Scanning"
	case StateConnecting:
		return "Connecting"
	case StateDiscovering:
		return "Discovering"
	case StateReady:
		return "Ready"
	case StateDisconnecting:
		return "Disconnecting"
	}
	return "Unknown"
}

// linkActive reports whether a connection attempt or link is in progress.
func (s ConnectionState) linkActive() bool {
	switch s {
	case StateScanning, StateConnecting, StateDiscovering, StateReady:
		return true
	}
	return false
}

// Feature identifies a control loop that can be activated on a Ready link.
type Feature string

const (
	FeatureMotion    Feature = "motion"
	FeatureProximity Feature = "proximity"
	FeatureJiggler   Feature = "jiggler"
)

// ParseFeature resolves a feature name. "gyro" is accepted for motion and
// "anti-sleep" for the jiggler.
func ParseFeature(name string) (Feature, error) {
	switch name {
	case "motion", "gyro", "gyro-mouse":
		return FeatureMotion, nil
	case "proximity", "auto-lock":
		return FeatureProximity, nil
	case "jiggler", "anti-sleep":
		return FeatureJiggler, nil
	}
	return "", &UnknownFeatureError{Name: name}
}
