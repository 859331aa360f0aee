package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldassign/core/assign"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
	"github.com/kilianp07/fieldassign/core/session"
	"github.com/kilianp07/fieldassign/pkg/export"
	"github.com/kilianp07/fieldassign/pkg/roster"
)

var (
	assignInstructions []string
	assignPresets      []string
	assignRoster       string
	assignSeed         uint64
	assignFormat       string
	assignRoutes       bool
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Apply instructions to a roster and print the resulting table",
	Example: `  fieldassign assign -i "give the easy sites to the novice" --seed 7
  fieldassign assign -i "rebalance" -i "trouble" -f csv`,
	RunE: runAssign,
}

func init() {
	f := assignCmd.Flags()
	f.StringArrayVarP(&assignInstructions, "instruction", "i", nil, "instruction to apply, repeatable and applied in order")
	f.StringArrayVarP(&assignPresets, "preset", "p", nil, "preset to apply after the instructions (novice-care, trouble, rebalance)")
	f.StringVarP(&assignRoster, "roster", "r", "", "roster file, overrides the configuration")
	f.Uint64Var(&assignSeed, "seed", 0, "non-zero random seed, overrides the configuration")
	f.StringVarP(&assignFormat, "format", "f", string(export.FormatText), "output format: text, json or csv")
	f.BoolVar(&assignRoutes, "routes", false, "print the route of every staff member after the table")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Roster.Path
	if assignRoster != "" {
		path = assignRoster
	}
	ro, err := roster.LoadOrDefault(path)
	if err != nil {
		return err
	}
	opts := cfg.Engine.Options()
	if cmd.Flags().Changed("seed") {
		if assignSeed == 0 {
			return errors.New("--seed must be non-zero, omit it for random runs")
		}
		opts.Seed = assignSeed
	}

	steps := make([]assignStep, 0, len(assignInstructions)+len(assignPresets))
	for _, in := range assignInstructions {
		steps = append(steps, assignStep{text: in})
	}
	for _, name := range assignPresets {
		p, err := session.LookupPreset(name)
		if err != nil {
			return fmt.Errorf("%w %q", err, name)
		}
		steps = append(steps, assignStep{text: p.Instruction, rule: p.Rule, preset: true})
	}
	if len(steps) == 0 {
		p := session.Presets["rebalance"]
		steps = append(steps, assignStep{text: p.Instruction, rule: p.Rule, preset: true})
	}

	out := cmd.OutOrStdout()
	engine := assign.NewEngine(opts)
	sites := ro.Sites
	var table result.Table
	for _, st := range steps {
		var run assign.Run
		if st.preset {
			run = engine.AssignKind(st.rule, st.text, sites, ro.Staff)
		} else {
			run = engine.Assign(st.text, sites, ro.Staff)
		}
		sites = run.Sites
		table = result.New(ro.Office, ro.Staff, sites)
		if export.Format(assignFormat) == export.FormatText {
			fmt.Fprintf(out, "[%s] %s\n\n", run.Rule, table.Summary(st.text))
		}
	}
	if err := export.Write(out, table, export.Format(assignFormat)); err != nil {
		return err
	}
	if assignRoutes {
		printRoutes(out, table)
	}
	return nil
}

// assignStep is one instruction to run. Presets carry their rule; free text
// is classified by the engine.
type assignStep struct {
	text   string
	rule   model.InstructionKind
	preset bool
}

func printRoutes(w io.Writer, t result.Table) {
	fmt.Fprintln(w)
	for _, r := range t.Routes() {
		fmt.Fprintf(w, "%s: %s", r.Staff.Name, t.Office.Name)
		for _, s := range r.Sites {
			fmt.Fprintf(w, " -> %s", s.Name)
		}
		fmt.Fprintln(w)
	}
}
