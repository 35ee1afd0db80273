package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/SinghProbjot/Synapse/internal/macro"
	"github.com/spf13/cobra"
)

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "List and run Lua macros from the macro deck",
	Long: `The macro deck is a YAML file mapping slots M1..M12 to Lua scripts:

  M1:
    label: Unlock
    script: |
      synapse.text("hunter2")
      synapse.key("ENTER")
  M2: synapse.shortcut("lock")

Scripts use the synapse table: key, text, click, move, media, config,
shortcut, sleep and log. print() output is shown while the macro runs.`,
}

var macroListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the macro deck",
	Args:  cobra.NoArgs,
	RunE:  runMacroList,
}

var macroRunCmd = &cobra.Command{
	Use:     "run <slot>",
	Short:   "Run a macro slot on the accessory",
	Example: "  synapse macro run M1",
	Args:    cobra.ExactArgs(1),
	RunE:    runMacroRun,
}

var macroListFormat string

func init() {
	macroListCmd.Flags().StringVarP(&macroListFormat, "format", "f", "table", "Output format (table, json)")
	macroCmd.AddCommand(macroListCmd)
	macroCmd.AddCommand(macroRunCmd)
}

func loadDeck(cmd *cobra.Command) (*macro.Deck, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return macro.LoadFile(cfg.MacroFile)
}

func runMacroList(cmd *cobra.Command, _ []string) error {
	deck, err := loadDeck(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if macroListFormat == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(deck.List())
	}

	if deck.Len() == 0 {
		fmt.Fprintln(out, "Macro deck is empty")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tLABEL\tLINES")
	for _, m := range deck.List() {
		lines := strings.Count(strings.TrimRight(m.Script, "\n"), "\n") + 1
		fmt.Fprintf(w, "%s\t%s\t%d\n", m.Slot, m.Label, lines)
	}
	return w.Flush()
}

func runMacroRun(cmd *cobra.Command, args []string) error {
	slot, err := macro.ParseSlot(args[0])
	if err != nil {
		return err
	}
	deck, err := loadDeck(cmd)
	if err != nil {
		return err
	}
	m, err := deck.Get(slot)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	return runConnected(cmd, sessionOptions{}, func(ctx context.Context, s *session) error {
		runner := macro.NewRunner(s.engine, s.logger)
		err := runner.Run(ctx, m)
		printMacroOutput(cmd.OutOrStdout(), runner.Transcript(), runner.Dropped())
		if err != nil {
			return err
		}
		if err := waitTyped(ctx, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Macro %s (%s) done\n", m.Slot, m.Label)
		return nil
	})
}

func printMacroOutput(out io.Writer, records []macro.OutputRecord, dropped int64) {
	if dropped > 0 {
		fmt.Fprintf(out, "(%d earlier line(s) not shown)\n", dropped)
	}
	for _, rec := range records {
		fmt.Fprintf(out, "[%s] %s\n", rec.Slot, rec.Content)
	}
}
