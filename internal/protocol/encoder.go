package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrEmptyMove is returned for a Move with both deltas zero. Callers treat it as a no-op.
	ErrEmptyMove = errors.New("empty move")

	// ErrInvalidCommand is returned for commands that cannot be expressed in the wire grammar.
	ErrInvalidCommand = errors.New("invalid command")
)

const fieldSeparator = ":"

// Encode maps a command to its wire text. It is pure and deterministic.
func Encode(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case Key:
		if err := validateToken("key", c.Code); err != nil {
			return nil, err
		}
		return []byte("KEY:" + c.Code), nil

	case Move:
		if c.DX == 0 && c.DY == 0 {
			return nil, ErrEmptyMove
		}
		return []byte("MOVE:" + strconv.Itoa(c.DX) + fieldSeparator + strconv.Itoa(c.DY)), nil

	case Click:
		if !c.Button.valid() {
			return nil, fmt.Errorf("%w: unknown button %q", ErrInvalidCommand, c.Button)
		}
		return []byte("CLICK:" + string(c.Button)), nil

	case Config:
		if err := validateToken("config name", c.Name); err != nil {
			return nil, err
		}
		flag := "0"
		if c.Enabled {
			flag = "1"
		}
		return []byte("CFG:" + c.Name + fieldSeparator + flag), nil

	case Media:
		if !c.Action.valid() {
			return nil, fmt.Errorf("%w: unknown media action %q", ErrInvalidCommand, c.Action)
		}
		return []byte("MEDIA:" + string(c.Action)), nil

	case Char:
		if !utf8.ValidRune(c.Rune) {
			return nil, fmt.Errorf("%w: invalid character %U", ErrInvalidCommand, c.Rune)
		}
		return []byte(string(c.Rune)), nil

	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}

	return nil, fmt.Errorf("%w: unsupported command type %T", ErrInvalidCommand, cmd)
}

// EncodeString is Encode returning the wire text as a string.
func EncodeString(cmd Command) (string, error) {
	b, err := Encode(cmd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TextCommands splits text into one Char command per code point, in order.
// Invalid UTF-8 bytes are replaced with U+FFFD by the range loop.
func TextCommands(text string) []Command {
	cmds := make([]Command, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		cmds = append(cmds, Char{Rune: r})
	}
	return cmds
}

func validateToken(what, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidCommand, what)
	}
	if strings.Contains(token, fieldSeparator) {
		return fmt.Errorf("%w: %s %q contains %q", ErrInvalidCommand, what, token, fieldSeparator)
	}
	for _, r := range token {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: %s %q contains whitespace or control characters", ErrInvalidCommand, what, token)
		}
	}
	return nil
}

func normalizeToken(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
