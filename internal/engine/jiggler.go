package engine

import (
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/sirupsen/logrus"
)

// jigglerConfigName is the accessory-side feature toggled by the activity toggle.
const jigglerConfigName = "Jiggler"

// setJiggler flips the keep-awake toggle to enabled and tells the accessory. Loop-owned.
func (e *Engine) setJiggler(enabled bool) {
	if e.jiggler == enabled {
		return
	}
	e.jiggler = enabled
	e.setFeature(FeatureJiggler, enabled)

	state := "off"
	if enabled {
		state = "on"
	}
	e.record(logrus.InfoLevel, nil, "Anti-sleep %s", state)
	e.sendRecorded(protocol.Config{Name: jigglerConfigName, Enabled: enabled})
}

// resetJiggler clears the toggle without telling the accessory. Used on teardown.
func (e *Engine) resetJiggler() {
	if !e.jiggler {
		return
	}
	e.jiggler = false
	e.setFeature(FeatureJiggler, false)
}
