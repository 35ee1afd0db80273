package engine

// Event is published to subscribers. Concrete types are StateChanged,
// LogAppended, FeatureChanged and SignalStrength.
type Event interface {
	engineEvent()
}

// StateChanged reports a connection state transition.
type StateChanged struct {
	From    ConnectionState
	To      ConnectionState
	Address string
}

// LogAppended carries a new log feed entry.
type LogAppended struct {
	Entry LogEntry
}

// FeatureChanged reports a feature loop starting or stopping.
type FeatureChanged struct {
	Feature Feature
	Active  bool
}

// SignalStrength reports a signal strength reading from the link.
type SignalStrength struct {
	RSSI int
}

func (StateChanged) engineEvent()   {}
func (LogAppended) engineEvent()    {}
func (FeatureChanged) engineEvent() {}
func (SignalStrength) engineEvent() {}
