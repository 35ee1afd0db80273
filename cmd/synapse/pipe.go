package main

import (
	"context"
	"fmt"
	"os"

	"github.com/SinghProbjot/Synapse/internal/ptyio"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Open a PTY whose input is typed on the companion computer",
	Long: `Connect to the accessory and open a pseudo-terminal. Text written to the
terminal device is typed on the companion computer, character by character:

  synapse pipe --symlink /tmp/synapse-kbd &
  echo "hello" > /tmp/synapse-kbd

DEL is sent as backspace and CR as a newline. Ctrl+C closes the pipe.`,
	Args: cobra.NoArgs,
	RunE: runPipe,
}

var (
	pipeSymlink string
	pipeReadCap int
)

func init() {
	pipeCmd.Flags().StringVar(&pipeSymlink, "symlink", "", "Create a symlink to the PTY device (e.g., /tmp/synapse-kbd)")
	pipeCmd.Flags().IntVar(&pipeReadCap, "buffer", 4096, "Input buffer size in bytes; input beyond it is dropped")
}

func runPipe(cmd *cobra.Command, _ []string) error {
	if pipeReadCap <= 0 {
		return fmt.Errorf("invalid buffer size %d: must be positive", pipeReadCap)
	}

	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{}, func(ctx context.Context, s *session) error {
		opts := ptyio.DefaultOptions()
		opts.ReadCap = pipeReadCap
		opts.Logger = s.logger

		pipe, err := ptyio.Open(opts, func(text string) {
			if err := s.engine.TypeText(ctx, text); err != nil {
				s.logger.WithField("error", err).Warn("Dropped piped text")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to open keyboard pipe: %w", err)
		}
		defer func() {
			stats := pipe.Stats()
			_ = pipe.Close()
			s.logger.WithFields(logrus.Fields{
				"read_bytes":    stats.ReadBytes,
				"dropped_bytes": stats.DroppedBytes,
			}).Info("Keyboard pipe closed")
		}()

		device := pipe.TTYName()
		if pipeSymlink != "" {
			if fi, err := os.Lstat(pipeSymlink); err == nil {
				if fi.Mode()&os.ModeSymlink == 0 {
					return fmt.Errorf("refusing to replace %s: not a symlink", pipeSymlink)
				}
				_ = os.Remove(pipeSymlink)
			}
			if err := os.Symlink(device, pipeSymlink); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", pipeSymlink, err)
			}
			defer os.Remove(pipeSymlink)
			device = pipeSymlink
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Keyboard pipe ready: %s\n", device)

		return s.waitLinkLoss(ctx, nil)
	})
}
