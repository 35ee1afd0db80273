package protocol

import (
	"fmt"
	"strings"
)

// ParseCommand builds a command from a CLI-style spec such as "key:ESC",
// "move:5:-3", "click:left", "media:vol_up" or "cfg:Jiggler:1".
func ParseCommand(spec string) (Command, error) {
	kind, rest, _ := strings.Cut(spec, ":")
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "key":
		if rest == "" {
			return nil, fmt.Errorf("%w: key needs a name", ErrInvalidCommand)
		}
		return Key{Code: rest}, nil
	case "move":
		var dx, dy int
		if _, err := fmt.Sscanf(rest, "%d:%d", &dx, &dy); err != nil {
			return nil, fmt.Errorf("%w: move needs <dx>:<dy>: %v", ErrInvalidCommand, err)
		}
		return Move{DX: dx, DY: dy}, nil
	case "click":
		b, err := ParseButton(rest)
		if err != nil {
			return nil, err
		}
		return Click{Button: b}, nil
	case "media":
		a, err := ParseMediaAction(rest)
		if err != nil {
			return nil, err
		}
		return Media{Action: a}, nil
	case "cfg", "config":
		name, flag, ok := strings.Cut(rest, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: config needs <name>:<0|1>", ErrInvalidCommand)
		}
		switch strings.ToLower(flag) {
		case "1", "on", "true":
			return Config{Name: name, Enabled: true}, nil
		case "0", "off", "false":
			return Config{Name: name, Enabled: false}, nil
		}
		return nil, fmt.Errorf("%w: config flag %q must be 0 or 1", ErrInvalidCommand, flag)
	}
	return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, kind)
}
