package engine

import (
	"context"
	"errors"

	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Quick keys offered by the input pad.
var QuickKeys = []string{"ESC", "TAB", "WIN", "ALT"}

// ErrNoEmail is returned by TypeEmail when no address is configured.
var ErrNoEmail = errors.New("no email configured")

// Shortcut resolves s for the configured platform and sends it. Unsupported
// shortcuts are logged and not sent.
func (e *Engine) Shortcut(s protocol.Shortcut) error {
	cs := e.controlSettings()
	cmd, err := protocol.ResolveShortcut(cs.TargetPlatform, s)
	if err != nil {
		e.record(logrus.WarnLevel, logrus.Fields{"shortcut": string(s)}, "Shortcut %s is not supported on %s", s, cs.TargetPlatform)
		return err
	}
	e.sendRecorded(cmd)
	return nil
}

// Lock locks the companion computer.
func (e *Engine) Lock() error {
	return e.Shortcut(protocol.ShortcutLock)
}

// CloseApp closes the foreground application.
func (e *Engine) CloseApp() error {
	return e.Shortcut(protocol.ShortcutCloseApp)
}

// Key presses a named key.
func (e *Engine) Key(code string) error {
	return e.sendChecked(protocol.Key{Code: code})
}

// Click presses a pointer button.
func (e *Engine) Click(button protocol.Button) error {
	return e.sendChecked(protocol.Click{Button: button})
}

// Media sends a media transport action.
func (e *Engine) Media(action protocol.MediaAction) error {
	return e.sendChecked(protocol.Media{Action: action})
}

// TypeEmail types the configured user email.
func (e *Engine) TypeEmail(ctx context.Context) error {
	cs := e.controlSettings()
	if cs.UserEmail == "" {
		return ErrNoEmail
	}
	return e.TypeText(ctx, cs.UserEmail)
}

// sendChecked is sendRecorded that also reports errors to the caller.
func (e *Engine) sendChecked(cmd protocol.Command) error {
	wire, err := e.send(cmd)
	if err != nil {
		e.record(logrus.ErrorLevel, logrus.Fields{"command": cmd.String()}, "Send failed: %v", err)
		return err
	}
	if wire != "" {
		e.record(logrus.InfoLevel, nil, "Sent %s", wire)
	}
	return nil
}
