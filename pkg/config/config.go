package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
)

// Config holds application configuration
type Config struct {
	LogLevel         logrus.Level  `json:"log_level"`
	ScanTimeout      time.Duration `json:"scan_timeout" default:"10s"`
	ConnectTimeout   time.Duration `json:"connect_timeout" default:"10s"`
	DiscoveryTimeout time.Duration `json:"discovery_timeout" default:"15s"`
	SettingsFile     string        `json:"settings_file"`
	MacroFile        string        `json:"macro_file"`
	// DeviceAddress pins the accessory; empty accepts the first one advertising the service
	DeviceAddress string `json:"device_address"`
	OutputFormat  string `json:"output_format" default:"table"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{LogLevel: logrus.InfoLevel}
	defaults.SetDefaults(cfg)
	cfg.SettingsFile = defaultPath("settings.yaml")
	cfg.MacroFile = defaultPath("macros.yaml")
	return cfg
}

// Validate checks values that flags cannot constrain
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("invalid output format %q (must be table or json)", c.OutputFormat)
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan timeout must be positive, got %s", c.ScanTimeout)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	return nil
}

// logLevels are the names accepted by ParseLogLevel.
var logLevels = map[string]logrus.Level{
	"trace": logrus.TraceLevel,
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
}

// ParseLogLevel maps a --log-level value to a logrus level. An empty name
// means silent.
func ParseLogLevel(name string) (logrus.Level, error) {
	if name == "" {
		return logrus.PanicLevel, nil
	}
	level, ok := logLevels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", name)
	}
	return level, nil
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// defaultPath returns name inside the user config directory, or name itself
// when the directory is unknown.
func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "synapse", name)
}
