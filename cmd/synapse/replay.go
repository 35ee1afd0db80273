package main

import (
	"context"
	"fmt"

	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/SinghProbjot/Synapse/internal/sensor"
	"github.com/spf13/cobra"
)

var gyroReplayCmd = &cobra.Command{
	Use:   "gyro-replay <recording.yaml>",
	Short: "Drive the pointer from a recorded rotation stream",
	Long: `Replay a recorded rotation stream through the gyro mouse. Samples are
scaled by gyroSensitivity and the invertX/invertY settings, exactly like a live sensor.

Recording format:

  interval_ms: 16.6
  loop: false
  samples:
    - {x: 0, y: 1.0, z: 0}
    - {x: 0, y: 0.8, z: -0.2}`,
	Args: cobra.ExactArgs(1),
	RunE: runGyroReplay,
}

var replayLoop bool

func init() {
	gyroReplayCmd.Flags().BoolVar(&replayLoop, "loop", false, "Repeat the recording until interrupted")
}

func runGyroReplay(cmd *cobra.Command, args []string) error {
	src, err := sensor.LoadReplayFile(args[0])
	if err != nil {
		return err
	}
	if replayLoop {
		src.Loop = true
	}

	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{Motion: src}, func(ctx context.Context, s *session) error {
		err := holdFeature(ctx, cmd, s, engine.FeatureMotion, func(ev engine.Event) bool {
			// the motion loop stops by itself when the recording ends
			fc, ok := ev.(engine.FeatureChanged)
			return ok && fc.Feature == engine.FeatureMotion && !fc.Active
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d sample(s), sent %d move(s)\n", len(src.Samples), s.engine.Snapshot().Sent)
		return nil
	})
}
