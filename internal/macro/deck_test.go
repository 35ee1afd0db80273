package macro

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeck = `
M3:
  label: Lock and mute
  script: |
    synapse.shortcut("lock")
    synapse.media("mute")
m1: synapse.key("ESC")
M12:
  script: synapse.click()
`

func TestLoad_PreservesOrder(t *testing.T) {
	deck, err := Load(strings.NewReader(sampleDeck))
	require.NoError(t, err)

	list := deck.List()
	require.Len(t, list, 3)

	assert.Equal(t, []string{"M3", "M1", "M12"}, []string{list[0].Slot, list[1].Slot, list[2].Slot},
		"macros MUST be listed in definition order")
	assert.Equal(t, "Lock and mute", list[0].Label)
	assert.Equal(t, "M1", list[1].Label, "unlabelled macros MUST default to their slot name")
	assert.Equal(t, `synapse.key("ESC")`, list[1].Script)
}

func TestLoad_Empty(t *testing.T) {
	deck, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, deck.Len())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"not a mapping", "- synapse.key('ESC')", "must be a mapping"},
		{"bad slot", "M13: synapse.key('ESC')", "invalid macro slot"},
		{"duplicate", "M1: a()\nm1: b()", "defined twice"},
		{"empty script", "M2:\n  label: nothing", "empty script"},
		{"malformed", "M1: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDeck_Get(t *testing.T) {
	deck := NewDeck()
	require.NoError(t, deck.Set("m5", Macro{Script: "synapse.key('TAB')"}))

	m, err := deck.Get("M5")
	require.NoError(t, err)
	assert.Equal(t, "M5", m.Slot)

	_, err = deck.Get("M6")
	assert.ErrorIs(t, err, ErrUnknownSlot)

	_, err = deck.Get("X1")
	assert.Error(t, err)
}

func TestParseSlot(t *testing.T) {
	for _, ok := range []string{"M1", "m9", " M10 ", "M12"} {
		_, err := ParseSlot(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"M0", "M13", "M01", "1", ""} {
		_, err := ParseSlot(bad)
		assert.Error(t, err, bad)
	}
}
