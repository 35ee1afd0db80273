// Package protocol defines the commands streamed to the Synapse accessory and
// their text wire encoding.
//
// Wire grammar (case-sensitive, one command per write):
//
//	KEY:<TOKEN>
//	MOVE:<dx>:<dy>
//	CLICK:LEFT | CLICK:RIGHT
//	CFG:<name>:0 | CFG:<name>:1
//	MEDIA:PLAY | MEDIA:VOL_UP | MEDIA:VOL_DN | MEDIA:MUTE | MEDIA:NEXT | MEDIA:PREV
//	<single raw UTF-8 character>, backspace is 0x08
package protocol

import "fmt"

// Command is an immutable user intent that can be encoded onto the wire.
type Command interface {
	fmt.Stringer
	isCommand()
}

// Key presses a named key or key combination, e.g. "ESC" or "WIN+L".
type Key struct {
	Code string
}

// Move is a relative pointer displacement.
type Move struct {
	DX int
	DY int
}

// Button identifies a pointer button.
type Button string

const (
	ButtonLeft  Button = "LEFT"
	ButtonRight Button = "RIGHT"
)

// Click presses a pointer button.
type Click struct {
	Button Button
}

// Config toggles a named accessory-side feature.
type Config struct {
	Name    string
	Enabled bool
}

// MediaAction is one of the media transport actions understood by the accessory.
type MediaAction string

const (
	MediaPlay       MediaAction = "PLAY"
	MediaVolumeUp   MediaAction = "VOL_UP"
	MediaVolumeDown MediaAction = "VOL_DN"
	MediaMute       MediaAction = "MUTE"
	MediaNext       MediaAction = "NEXT"
	MediaPrev       MediaAction = "PREV"
)

// Media issues a media transport action.
type Media struct {
	Action MediaAction
}

// Backspace is the control character the accessory interprets as a backspace.
const Backspace rune = 0x08

// Char types a single literal character.
type Char struct {
	Rune rune
}

func (Key) isCommand()    {}
func (Move) isCommand()   {}
func (Click) isCommand()  {}
func (Config) isCommand() {}
func (Media) isCommand()  {}
func (Char) isCommand()   {}

func (c Key) String() string    { return "Key(" + c.Code + ")" }
func (c Move) String() string   { return fmt.Sprintf("Move(%d,%d)", c.DX, c.DY) }
func (c Click) String() string  { return "Click(" + string(c.Button) + ")" }
func (c Config) String() string { return fmt.Sprintf("Config(%s,%t)", c.Name, c.Enabled) }
func (c Media) String() string  { return "Media(" + string(c.Action) + ")" }

func (c Char) String() string {
	if c.Rune == Backspace {
		return "Char(BACKSPACE)"
	}
	return fmt.Sprintf("Char(%q)", c.Rune)
}

// ParseButton resolves a button name case-insensitively ("left", "R-CLICK", ...).
func ParseButton(name string) (Button, error) {
	switch normalizeToken(name) {
	case "LEFT", "L", "L-CLICK", "LCLICK":
		return ButtonLeft, nil
	case "RIGHT", "R", "R-CLICK", "RCLICK":
		return ButtonRight, nil
	}
	return "", fmt.Errorf("%w: unknown button %q", ErrInvalidCommand, name)
}

// ParseMediaAction resolves a media action name case-insensitively.
func ParseMediaAction(name string) (MediaAction, error) {
	action := MediaAction(normalizeToken(name))
	if !action.valid() {
		return "", fmt.Errorf("%w: unknown media action %q", ErrInvalidCommand, name)
	}
	return action, nil
}

func (a MediaAction) valid() bool {
	switch a {
	case MediaPlay, MediaVolumeUp, MediaVolumeDown, MediaMute, MediaNext, MediaPrev:
		return true
	}
	return false
}

func (b Button) valid() bool {
	return b == ButtonLeft || b == ButtonRight
}
