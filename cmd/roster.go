package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	rosterFile   string
	rosterAsYAML bool
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Print the staff and sites of the roster",
	RunE:  runRoster,
}

func init() {
	rosterCmd.Flags().StringVarP(&rosterFile, "roster", "r", "", "roster file, overrides the configuration")
	rosterCmd.Flags().BoolVar(&rosterAsYAML, "yaml", false, "print the roster as YAML, usable as a roster file")
	rootCmd.AddCommand(rosterCmd)
}

func runRoster(cmd *cobra.Command, args []string) error {
	ro, err := rosterFor(rosterFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if rosterAsYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(ro); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(out, "Office: %s (%.4f, %.4f)\n\n", ro.Office.Name, ro.Office.Location.Lat, ro.Office.Location.Lon)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSKILL\tINTERPERSONAL")
	for _, s := range ro.Staff {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Skill, s.Interpersonal)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tDIFFICULTY\tSTRESS")
	for _, s := range ro.Sites {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Difficulty, s.Stress)
	}
	return w.Flush()
}
