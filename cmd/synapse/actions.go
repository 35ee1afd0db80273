package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the companion computer",
	Long:  `Send the lock shortcut for the configured target platform (WIN+L on Windows, CTRL+CMD+Q on macOS).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAction(cmd, func(e *engine.Engine) error { return e.Lock() })
	},
}

var closeAppCmd = &cobra.Command{
	Use:   "close-app",
	Short: "Close the foreground application",
	Long:  `Send the close-app shortcut for the configured target platform (ALT+F4 on Windows, CMD+Q on macOS).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAction(cmd, func(e *engine.Engine) error { return e.CloseApp() })
	},
}

var keyCmd = &cobra.Command{
	Use:       "key <name>",
	Short:     "Press a key or key combination",
	Example:   "  synapse key ESC\n  synapse key CTRL+ALT+DEL",
	Args:      cobra.ExactArgs(1),
	ValidArgs: engine.QuickKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		code := strings.ToUpper(args[0])
		if _, err := protocol.Encode(protocol.Key{Code: code}); err != nil {
			return err
		}
		return runAction(cmd, func(e *engine.Engine) error { return e.Key(code) })
	},
}

var clickCmd = &cobra.Command{
	Use:       "click [left|right]",
	Short:     "Press a pointer button (left by default)",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"left", "right"},
	RunE: func(cmd *cobra.Command, args []string) error {
		button := protocol.ButtonLeft
		if len(args) == 1 {
			b, err := protocol.ParseButton(args[0])
			if err != nil {
				return err
			}
			button = b
		}
		return runAction(cmd, func(e *engine.Engine) error { return e.Click(button) })
	},
}

var mediaCmd = &cobra.Command{
	Use:       "media <play|vol_up|vol_dn|mute|next|prev>",
	Short:     "Send a media transport action",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"play", "vol_up", "vol_dn", "mute", "next", "prev"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := protocol.ParseMediaAction(args[0])
		if err != nil {
			return err
		}
		return runAction(cmd, func(e *engine.Engine) error { return e.Media(action) })
	},
}

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Lock the computer when the accessory walks out of range",
	Long: `Arm the proximity lock and keep polling signal strength. When the reading
drops below the threshold the lock shortcut is sent once and the command exits.
Ctrl+C disarms.`,
	Args: cobra.NoArgs,
	RunE: runGuard,
}

var keepAwakeCmd = &cobra.Command{
	Use:     "keep-awake",
	Aliases: []string{"jiggle"},
	Short:   "Keep the companion computer awake until interrupted",
	Long:    `Enable the accessory-side anti-sleep jiggler and keep the link open. Ctrl+C disables it again.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runFeature(cmd, engine.FeatureJiggler, nil)
	},
}

// runAction connects, runs a one-shot action and prints the log feed line it produced.
func runAction(cmd *cobra.Command, action func(e *engine.Engine) error) error {
	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{}, func(ctx context.Context, s *session) error {
		if err := action(s.engine); err != nil {
			return err
		}
		if !s.engine.Ready() {
			return ErrConnectionLost
		}
		if entries := s.engine.Log(); len(entries) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), entries[0].Message)
		}
		return nil
	})
}

func runGuard(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	return runFeature(cmd, engine.FeatureProximity, func(ev engine.Event) bool {
		switch ev := ev.(type) {
		case engine.SignalStrength:
			fmt.Fprintf(out, "Signal %d dBm\n", ev.RSSI)
		case engine.FeatureChanged:
			// the monitor disarms itself after locking
			return ev.Feature == engine.FeatureProximity && !ev.Active
		}
		return false
	})
}

// runFeature activates f and holds the link until interrupted, the link drops
// or onEvent reports completion. The feature is deactivated on the way out.
func runFeature(cmd *cobra.Command, f engine.Feature, onEvent func(engine.Event) bool) error {
	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{}, func(ctx context.Context, s *session) error {
		return holdFeature(ctx, cmd, s, f, onEvent)
	})
}

func holdFeature(ctx context.Context, cmd *cobra.Command, s *session, f engine.Feature, onEvent func(engine.Event) bool) error {
	if err := s.engine.Activate(ctx, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s active, press Ctrl+C to stop\n", f)

	err := s.waitLinkLoss(ctx, func(ev engine.Event) bool {
		if le, ok := ev.(engine.LogAppended); ok {
			fmt.Fprintln(cmd.OutOrStdout(), le.Entry.Message)
		}
		return onEvent != nil && onEvent(ev)
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), radioWaitTimeout)
	defer cancel()
	if derr := s.engine.Deactivate(stopCtx, f); derr != nil && !errors.Is(derr, engine.ErrClosed) && err == nil {
		return derr
	}
	return err
}
