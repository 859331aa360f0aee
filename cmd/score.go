package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fieldassign/core/affinity"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
	"github.com/kilianp07/fieldassign/pkg/roster"
)

var scoreRoster string

var scoreCmd = &cobra.Command{
	Use:   "score STAFF_ID SITE_NAME",
	Short: "Score one staff member against one site",
	Args:  cobra.ExactArgs(2),
	RunE:  runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreRoster, "roster", "r", "", "roster file, overrides the configuration")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ro, err := rosterFor(scoreRoster)
	if err != nil {
		return err
	}
	st, ok := staffByID(ro, args[0])
	if !ok {
		return fmt.Errorf("unknown staff %q", args[0])
	}
	site, ok := ro.Site(args[1])
	if !ok {
		return fmt.Errorf("unknown site %q", args[1])
	}
	res := affinity.Score(st, site)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s -> %s: %d (%s)\n", st.Name, site.Name, res.Score, result.GradeOf(res.Score))
	for _, r := range res.Rationale {
		fmt.Fprintf(out, "  - %s\n", r)
	}
	if affinity.Risky(res.Score) {
		fmt.Fprintln(out, "warning: poor match")
	}
	return nil
}

func rosterFor(override string) (model.Roster, error) {
	if override != "" {
		return roster.Load(override)
	}
	cfg, err := loadConfig()
	if err != nil {
		return model.Roster{}, err
	}
	return roster.LoadOrDefault(cfg.Roster.Path)
}

func staffByID(ro model.Roster, id string) (model.Staff, bool) {
	return model.IndexStaff(ro.Staff).Lookup(model.StaffID(strings.TrimSpace(id)))
}
