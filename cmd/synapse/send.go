package main

import (
	"context"
	"fmt"
	"time"

	"github.com/SinghProbjot/Synapse/internal/protocol"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <command> [command...]",
	Short: "Send raw commands to the accessory",
	Long: `Connect to the accessory and send one or more commands in order.

Commands:
  key:<NAME>          press a key or combination, e.g. key:ESC, key:WIN+L
  move:<dx>:<dy>      relative pointer move, e.g. move:10:-4
  click:left|right    press a pointer button
  media:<ACTION>      PLAY, VOL_UP, VOL_DN, MUTE, NEXT, PREV
  cfg:<name>:<0|1>    toggle an accessory-side feature`,
	Example: `  synapse send key:ESC
  synapse send move:20:0 click:left
  synapse send --delay 200ms media:vol_up media:vol_up`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var sendDelay time.Duration

func init() {
	sendCmd.Flags().DurationVar(&sendDelay, "delay", 0, "Pause between commands")
}

func runSend(cmd *cobra.Command, args []string) error {
	// Parse everything before connecting
	cmds := make([]protocol.Command, 0, len(args))
	for _, arg := range args {
		c, err := protocol.ParseCommand(arg)
		if err != nil {
			return err
		}
		if _, err := protocol.Encode(c); err != nil && err != protocol.ErrEmptyMove {
			return fmt.Errorf("%s: %w", arg, err)
		}
		cmds = append(cmds, c)
	}

	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{}, func(ctx context.Context, s *session) error {
		for i, c := range cmds {
			if i > 0 && sendDelay > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(sendDelay):
				}
			}
			if err := s.engine.Send(c); err != nil {
				return err
			}
			if !s.engine.Ready() {
				return ErrConnectionLost
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %d command(s)\n", s.engine.Snapshot().Sent)
		return nil
	})
}
