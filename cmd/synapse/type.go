package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/spf13/cobra"
)

// typeCmd represents the type command
var typeCmd = &cobra.Command{
	Use:   "type [text...]",
	Short: "Type text on the companion computer",
	Long: `Connect to the accessory and type text one character at a time.

Arguments are joined with single spaces. Use "-" to read the text from stdin,
or --email to type the address configured as userEmail in the settings file.`,
	Example: `  synapse type "hello world"
  echo secret | synapse type -
  synapse type --email`,
	RunE: runType,
}

var typeEmail bool

func init() {
	typeCmd.Flags().BoolVar(&typeEmail, "email", false, "Type the configured email address")
}

func runType(cmd *cobra.Command, args []string) error {
	var text string
	switch {
	case typeEmail && len(args) > 0:
		return errors.New("--email does not take text arguments")
	case typeEmail:
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\r\n")
	case len(args) > 0:
		text = strings.Join(args, " ")
	default:
		return errors.New("nothing to type: pass text, - for stdin, or --email")
	}
	if !typeEmail && text == "" {
		return errors.New("nothing to type: input is empty")
	}

	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{}, func(ctx context.Context, s *session) error {
		var err error
		if typeEmail {
			err = s.engine.TypeEmail(ctx)
		} else {
			err = s.engine.TypeText(ctx, text)
		}
		if err != nil {
			return err
		}
		if err := waitTyped(ctx, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Typed %d character(s)\n", s.engine.Snapshot().Sent)
		return nil
	})
}

// waitTyped waits until the bulk text queue is empty.
func waitTyped(ctx context.Context, s *session) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap := s.engine.Snapshot()
		if snap.State != engine.StateReady {
			return ErrConnectionLost
		}
		if snap.PendingText == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
