package main

import (
	"unicode"
	"unicode/utf8"

	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
)

const escape = 0x1b

// control is a session action that is not a plain command.
type control int

const (
	ctlNone control = iota
	ctlQuit
	ctlToggleConnection
	ctlToggleFeature
	ctlLock
	ctlCloseApp
	ctlTypeEmail
	ctlHelp
)

// keyAction is what one keystroke asks the session to do.
type keyAction struct {
	Command protocol.Command
	Control control
	Feature engine.Feature
}

func (a keyAction) isMove() bool {
	_, ok := a.Command.(protocol.Move)
	return ok
}

// sessionHelp lists the bindings decodeKeys understands.
const sessionHelp = `Keys:
  text, Enter, Tab, Backspace, Esc   typed on the computer
  arrows                             move the pointer
  Home / End                         left / right click
  PgUp / PgDn                        volume up / down
  F1 gyro mouse   F2 proximity lock  F3 anti-sleep
  F4 lock         F5 close app       F6 type email
  Ctrl+R connect/disconnect   Ctrl+G help   Ctrl+C quit`

// decodeKeys maps raw terminal input to session actions. Terminals deliver an
// escape sequence in a single read, so a trailing lone ESC is the Esc key.
// Unknown sequences and control bytes are ignored.
func decodeKeys(data []byte, step int) []keyAction {
	var out []keyAction
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b == escape:
			a, n := decodeEscape(data[i:], step)
			if a != nil {
				out = append(out, *a)
			}
			i += n
			continue
		case b == 0x03 || b == 0x04:
			out = append(out, keyAction{Control: ctlQuit})
		case b == 0x12:
			out = append(out, keyAction{Control: ctlToggleConnection})
		case b == 0x07:
			out = append(out, keyAction{Control: ctlHelp})
		case b == '\r' || b == '\n':
			out = append(out, keyAction{Command: protocol.Key{Code: "ENTER"}})
		case b == '\t':
			out = append(out, keyAction{Command: protocol.Key{Code: "TAB"}})
		case b == 0x7f || b == 0x08:
			out = append(out, keyAction{Command: protocol.Char{Rune: protocol.Backspace}})
		case b < 0x20:
		default:
			r, n := utf8.DecodeRune(data[i:])
			if r != utf8.RuneError && unicode.IsPrint(r) {
				out = append(out, keyAction{Command: protocol.Char{Rune: r}})
			}
			i += n
			continue
		}
		i++
	}
	return out
}

// decodeEscape decodes the sequence at the start of data and returns the
// action (nil when unknown) and the number of bytes consumed.
func decodeEscape(data []byte, step int) (*keyAction, int) {
	if len(data) == 1 || (data[1] != '[' && data[1] != 'O') {
		return &keyAction{Command: protocol.Key{Code: "ESC"}}, 1
	}

	// CSI/SS3: parameters, then a final byte in 0x40..0x7e
	end := 2
	for end < len(data) && (data[end] < 0x40 || data[end] > 0x7e) {
		end++
	}
	if end == len(data) {
		return nil, len(data)
	}
	seq := string(data[1 : end+1])
	n := end + 1

	switch seq {
	case "[A", "OA":
		return &keyAction{Command: protocol.Move{DY: -step}}, n
	case "[B", "OB":
		return &keyAction{Command: protocol.Move{DY: step}}, n
	case "[C", "OC":
		return &keyAction{Command: protocol.Move{DX: step}}, n
	case "[D", "OD":
		return &keyAction{Command: protocol.Move{DX: -step}}, n
	case "[H", "OH", "[1~":
		return &keyAction{Command: protocol.Click{Button: protocol.ButtonLeft}}, n
	case "[F", "OF", "[4~":
		return &keyAction{Command: protocol.Click{Button: protocol.ButtonRight}}, n
	case "[5~":
		return &keyAction{Command: protocol.Media{Action: protocol.MediaVolumeUp}}, n
	case "[6~":
		return &keyAction{Command: protocol.Media{Action: protocol.MediaVolumeDown}}, n
	case "OP", "[11~":
		return &keyAction{Control: ctlToggleFeature, Feature: engine.FeatureMotion}, n
	case "OQ", "[12~":
		return &keyAction{Control: ctlToggleFeature, Feature: engine.FeatureProximity}, n
	case "OR", "[13~":
		return &keyAction{Control: ctlToggleFeature, Feature: engine.FeatureJiggler}, n
	case "OS", "[14~":
		return &keyAction{Control: ctlLock}, n
	case "[15~":
		return &keyAction{Control: ctlCloseApp}, n
	case "[17~":
		return &keyAction{Control: ctlTypeEmail}, n
	}
	return nil, n
}
