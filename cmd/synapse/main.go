package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Host bridge for the Synapse BLE keyboard and mouse accessory",
	Long: `Synapse drives a BLE accessory that acts as a keyboard and mouse on a
companion computer. It provides:

- Scan for nearby Synapse accessories
- Send keys, clicks, pointer moves, media actions and accessory config
- Type text and the configured email address
- Quick actions: lock the computer, close the foreground app
- Proximity auto-lock and anti-sleep jiggler
- Gyro mouse from a recorded rotation stream
- A PTY keyboard pipe and an interactive raw-terminal session
- A Lua macro deck with twelve slots (M1..M12)`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// main() prints errors itself
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("synapse {{.Version}} (commit %s, built %s)\n", commit, date))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(typeCmd)
	rootCmd.AddCommand(pipeCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(macroCmd)
	rootCmd.AddCommand(gyroReplayCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(closeAppCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(clickCmd)
	rootCmd.AddCommand(mediaCmd)
	rootCmd.AddCommand(guardCmd)
	rootCmd.AddCommand(keepAwakeCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("settings", "", "Settings file (YAML); defaults to the user config directory")
	rootCmd.PersistentFlags().String("macros", "", "Macro deck file (YAML); defaults to the user config directory")
	rootCmd.PersistentFlags().String("address", "", "Only connect to the accessory with this address")
	rootCmd.PersistentFlags().Duration("discovery-timeout", 0, "Give up when no Ready link is reached in time (default 15s, negative disables)")
	rootCmd.PersistentFlags().Duration("connect-timeout", 0, "Timeout for a single BLE dial attempt (default 10s)")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
