// Package macro runs the macro deck: up to twelve named Lua scripts (slots
// M1..M12) that drive the accessory through a small "synapse" API.
package macro

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// MaxSlots is the number of macro slots on the deck.
const MaxSlots = 12

var slotPattern = regexp.MustCompile(`^M([1-9]|1[0-2])$`)

// ErrUnknownSlot is returned when a slot has no macro assigned.
var ErrUnknownSlot = errors.New("unknown macro slot")

// Macro is a labelled Lua script bound to a deck slot.
type Macro struct {
	Slot   string `yaml:"-" json:"slot"`
	Label  string `yaml:"label" json:"label"`
	Script string `yaml:"script" json:"script"`
}

// Deck holds macros in the order they were defined.
type Deck struct {
	macros *orderedmap.OrderedMap[string, Macro]
}

// NewDeck creates an empty deck.
func NewDeck() *Deck {
	return &Deck{macros: orderedmap.New[string, Macro]()}
}

// ParseSlot normalizes a slot name ("m3" -> "M3") and validates it.
func ParseSlot(name string) (string, error) {
	slot := strings.ToUpper(strings.TrimSpace(name))
	if !slotPattern.MatchString(slot) {
		return "", fmt.Errorf("invalid macro slot %q (must be M1..M%d)", name, MaxSlots)
	}
	return slot, nil
}

// Set assigns m to slot, replacing any previous macro.
func (d *Deck) Set(slot string, m Macro) error {
	s, err := ParseSlot(slot)
	if err != nil {
		return err
	}
	if strings.TrimSpace(m.Script) == "" {
		return fmt.Errorf("macro %s has an empty script", s)
	}
	m.Slot = s
	if m.Label == "" {
		m.Label = s
	}
	d.macros.Set(s, m)
	return nil
}

// Get returns the macro in slot.
func (d *Deck) Get(slot string) (Macro, error) {
	s, err := ParseSlot(slot)
	if err != nil {
		return Macro{}, err
	}
	m, ok := d.macros.Get(s)
	if !ok {
		return Macro{}, fmt.Errorf("%w: %s", ErrUnknownSlot, s)
	}
	return m, nil
}

// List returns all macros in definition order.
func (d *Deck) List() []Macro {
	out := make([]Macro, 0, d.macros.Len())
	for pair := d.macros.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of assigned slots.
func (d *Deck) Len() int {
	return d.macros.Len()
}

// Load reads a deck from YAML. The document is a mapping of slot to macro:
//
//	M1:
//	  label: Lock and mute
//	  script: |
//	    synapse.shortcut("lock")
//	    synapse.media("mute")
//
// A bare string is accepted as the script of an unlabelled macro.
func Load(r io.Reader) (*Deck, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return NewDeck(), nil
		}
		return nil, fmt.Errorf("failed to parse macro deck: %w", err)
	}
	if len(doc.Content) == 0 {
		return NewDeck(), nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("macro deck must be a mapping of slot to macro (line %d)", root.Line)
	}

	deck := NewDeck()
	// mapping content alternates key, value
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		slot, err := ParseSlot(key.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", key.Line, err)
		}
		if _, dup := deck.macros.Get(slot); dup {
			return nil, fmt.Errorf("line %d: macro slot %s defined twice", key.Line, slot)
		}

		var m Macro
		switch value.Kind {
		case yaml.ScalarNode:
			m.Script = value.Value
		default:
			if err := value.Decode(&m); err != nil {
				return nil, fmt.Errorf("line %d: macro %s: %w", value.Line, slot, err)
			}
		}
		if err := deck.Set(slot, m); err != nil {
			return nil, fmt.Errorf("line %d: %w", value.Line, err)
		}
	}
	return deck, nil
}

// LoadFile reads a deck from a YAML file.
func LoadFile(path string) (*Deck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open macro deck: %w", err)
	}
	defer f.Close()
	return Load(f)
}
