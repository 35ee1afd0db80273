package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/SinghProbjot/Synapse/internal/device"
	goble "github.com/SinghProbjot/Synapse/internal/device/go-ble"
	"github.com/SinghProbjot/Synapse/internal/engine"
	"github.com/spf13/cobra"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Synapse accessories",
	Long: `Scan for nearby accessories advertising the Synapse service and list them
by signal strength, strongest first.

Use --all to list every BLE peripheral in range.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAll       bool
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config, 10s)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().BoolVarP(&scanAll, "all", "a", false, "List every peripheral, not only Synapse accessories")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show accessories with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide accessories with these addresses")
}

// scanResult is the JSON shape of a discovered accessory.
type scanResult struct {
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	RSSI     int      `json:"rssi"`
	Services []string `json:"services"`
	Synapse  bool     `json:"synapse"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := goble.DefaultScanOptions()
	opts.Duration = cfg.ScanTimeout
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList
	if !scanAll {
		opts.ServiceUUID = engine.DefaultOptions().ServiceUUID
	}

	ctx, cancel := withInterrupt(cmd.Context())
	defer cancel()

	var progress *ProgressPrinter
	if cfg.OutputFormat == "table" {
		progress = NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning", "listening", opts.Duration)
		progress.Start()
	}
	found, err := goble.NewScanner(logger).Scan(ctx, opts)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		return err
	}

	if cfg.OutputFormat == "json" {
		return displayScanJSON(cmd.OutOrStdout(), found)
	}
	return displayScanTable(cmd.OutOrStdout(), found)
}

func displayScanTable(out io.Writer, found []device.PeripheralDiscovered) error {
	if len(found) == 0 {
		fmt.Fprintln(out, "No accessories discovered")
		return nil
	}

	synapseUUID := engine.DefaultOptions().ServiceUUID
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSYNAPSE\tSERVICES")
	for _, p := range found {
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := make([]string, 0, len(p.Services))
		for _, s := range p.Services {
			services = append(services, device.ShortenUUID(s))
		}
		joined := strings.Join(services, ",")
		if len(joined) > 30 {
			joined = joined[:27] + "..."
		}

		marker := "-"
		if p.AdvertisesService(synapseUUID) {
			marker = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\n", name, p.Address, p.RSSI, marker, joined)
	}
	return w.Flush()
}

func displayScanJSON(out io.Writer, found []device.PeripheralDiscovered) error {
	synapseUUID := engine.DefaultOptions().ServiceUUID
	results := make([]scanResult, 0, len(found))
	for _, p := range found {
		services := p.Services
		if services == nil {
			services = []string{}
		}
		results = append(results, scanResult{
			Name:     p.Name,
			Address:  p.Address,
			RSSI:     p.RSSI,
			Services: services,
			Synapse:  p.AdvertisesService(synapseUUID),
		})
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
