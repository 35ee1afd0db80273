package main

import (
	"github.com/SinghProbjot/Synapse/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configureLogger builds the diagnostic logger from --log-level. Without the
// flag it stays silent: commands print their own progress and engine log.
func configureLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")
	level, err := config.ParseLogLevel(name)
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	cfg.LogLevel = level
	logger := cfg.NewLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	return logger, nil
}
