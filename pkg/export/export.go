// Package export writes assignment tables in machine readable formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// WriteJSON writes the table and its statistics to w.
func WriteJSON(w io.Writer, t result.Table) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		result.Table
		Stats result.Stats `json:"stats"`
	}{t, t.Stats()})
}

// WriteCSV writes one row per site.
func WriteCSV(w io.Writer, t result.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"site", "difficulty", "stress", "staff", "score", "visit_order", "rationale"}); err != nil {
		return err
	}
	for _, s := range t.Sites {
		rec := []string{
			s.Name,
			s.Difficulty.String(),
			s.Stress.String(),
			string(s.Assignment.Staff),
			strconv.Itoa(s.Assignment.Score),
			strconv.Itoa(s.Assignment.VisitOrder),
			strings.Join(s.Assignment.Rationale, " / "),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes an aligned table for terminals, followed by the grade of
// every assigned site.
func WriteText(w io.Writer, t result.Table) error {
	idx := model.IndexStaff(t.Staff)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tDIFFICULTY\tSTRESS\tSTAFF\tORDER\tSCORE\tGRADE\tRATIONALE")
	for _, s := range t.Sites {
		staff, order, score, grade := "-", "-", "-", "-"
		if s.Assigned() {
			staff = string(s.Assignment.Staff)
			if st, ok := idx.Lookup(s.Assignment.Staff); ok {
				staff = st.Name
			}
			order = strconv.Itoa(s.Assignment.VisitOrder)
			score = strconv.Itoa(s.Assignment.Score)
			grade = string(result.GradeOf(s.Assignment.Score))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Difficulty, s.Stress, staff, order, score, grade,
			strings.Join(s.Assignment.Rationale, " / "))
	}
	return tw.Flush()
}

// Write dispatches on format.
func Write(w io.Writer, t result.Table, format Format) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatText:
		return WriteText(w, t)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
