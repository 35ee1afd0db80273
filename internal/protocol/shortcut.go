package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Platform is the operating system of the companion computer.
type Platform string

const (
	PlatformWindows Platform = "Windows"
	PlatformMacOS   Platform = "macOS"
)

// ParsePlatform resolves a platform name case-insensitively. "mac", "macos" and "darwin"
// all map to macOS; "win" and "windows" map to Windows.
func ParsePlatform(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows", "win":
		return PlatformWindows, nil
	case "macos", "mac", "darwin", "osx":
		return PlatformMacOS, nil
	}
	return "", fmt.Errorf("unknown platform %q (must be Windows or macOS)", name)
}

// Shortcut is a platform-dependent action resolved to a single key combination.
type Shortcut string

const (
	ShortcutLock     Shortcut = "lock"
	ShortcutCloseApp Shortcut = "close-app"
	ShortcutCopy     Shortcut = "copy"
	ShortcutPaste    Shortcut = "paste"
)

// ErrUnsupportedShortcut is returned for shortcuts this protocol version cannot express.
var ErrUnsupportedShortcut = errors.New("unsupported shortcut")

var shortcutKeys = map[Shortcut]map[Platform]string{
	ShortcutLock: {
		PlatformWindows: "WIN+L",
		PlatformMacOS:   "CTRL+CMD+Q",
	},
	ShortcutCloseApp: {
		PlatformWindows: "ALT+F4",
		PlatformMacOS:   "CMD+Q",
	},
}

// ParseShortcut resolves a shortcut name case-insensitively.
func ParseShortcut(name string) (Shortcut, error) {
	s := Shortcut(strings.ToLower(strings.TrimSpace(name)))
	switch s {
	case ShortcutLock, ShortcutCloseApp, ShortcutCopy, ShortcutPaste:
		return s, nil
	case "kill", "close":
		return ShortcutCloseApp, nil
	}
	return "", fmt.Errorf("%w: unknown shortcut %q", ErrInvalidCommand, name)
}

// ResolveShortcut returns the Key command implementing the shortcut on the given platform.
func ResolveShortcut(platform Platform, s Shortcut) (Command, error) {
	byPlatform, ok := shortcutKeys[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShortcut, s)
	}
	code, ok := byPlatform[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %q", ErrUnsupportedShortcut, s, platform)
	}
	return Key{Code: code}, nil
}
