// Package result exposes read accessors over an assignment table: routes per
// staff member, aggregate statistics and display helpers. Everything is
// computed from the sites on demand; nothing is stored.
package result

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fieldassign/core/affinity"
	"github.com/kilianp07/fieldassign/core/model"
)

// Table is a read-only view over the sites of one assignment state.
type Table struct {
	Office model.Office  `json:"office"`
	Staff  []model.Staff `json:"staff"`
	Sites  []model.Site  `json:"sites"`
}

// New builds a Table.
func New(office model.Office, staff []model.Staff, sites []model.Site) Table {
	return Table{Office: office, Staff: staff, Sites: sites}
}

// Route is the ordered list of sites one staff member visits.
type Route struct {
	Staff model.Staff  `json:"staff"`
	Sites []model.Site `json:"sites"`
}

// Path returns the polyline of the route: the office followed by every site
// in visit order.
func (r Route) Path(office model.Office) []model.Location {
	path := make([]model.Location, 0, len(r.Sites)+1)
	path = append(path, office.Location)
	for _, s := range r.Sites {
		path = append(path, s.Location)
	}
	return path
}

// Routes returns one route per staff member that has sites, in staff order.
func (t Table) Routes() []Route {
	var routes []Route
	for _, st := range t.Staff {
		var sites []model.Site
		for _, s := range t.Sites {
			if s.Assignment.Staff == st.ID {
				sites = append(sites, s)
			}
		}
		if len(sites) == 0 {
			continue
		}
		sort.SliceStable(sites, func(i, j int) bool {
			return sites[i].Assignment.VisitOrder < sites[j].Assignment.VisitOrder
		})
		routes = append(routes, Route{Staff: st, Sites: sites})
	}
	return routes
}

// Stats aggregates a table.
type Stats struct {
	Total      int          `json:"total"`
	Assigned   int          `json:"assigned"`
	Unassigned int          `json:"unassigned"`
	MeanScore  float64      `json:"mean_score"`
	Risk       []model.Site `json:"risk"`
}

// Stats computes the aggregate statistics. The mean only covers assigned
// sites and is 0 when nothing is assigned.
func (t Table) Stats() Stats {
	st := Stats{Total: len(t.Sites)}
	var scores []float64
	for _, s := range t.Sites {
		if !s.Assigned() {
			continue
		}
		scores = append(scores, float64(s.Assignment.Score))
		if affinity.Risky(s.Assignment.Score) {
			st.Risk = append(st.Risk, s)
		}
	}
	st.Assigned = len(scores)
	st.Unassigned = st.Total - st.Assigned
	if len(scores) > 0 {
		st.MeanScore = stat.Mean(scores, nil)
	}
	return st
}

// Grade buckets a score the way the dashboard colours its progress bars.
type Grade string

const (
	GradeGood Grade = "good"
	GradeFair Grade = "fair"
	GradePoor Grade = "poor"
)

// GradeOf returns the grade of score.
func GradeOf(score int) Grade {
	switch {
	case score >= 80:
		return GradeGood
	case score >= 50:
		return GradeFair
	default:
		return GradePoor
	}
}

// Marker is the per-site data a map layer draws.
type Marker struct {
	Site     string         `json:"site"`
	Location model.Location `json:"location"`
	Staff    model.StaffID  `json:"staff,omitempty"`
	Color    string         `json:"color"`
	Score    int            `json:"score"`
	Warning  bool           `json:"warning"`
}

// Markers returns one marker per site. Unassigned sites are gray and never
// carry a warning.
func (t Table) Markers() []Marker {
	idx := model.IndexStaff(t.Staff)
	out := make([]Marker, 0, len(t.Sites))
	for _, s := range t.Sites {
		m := Marker{Site: s.Name, Location: s.Location, Color: "gray"}
		if s.Assigned() {
			m.Staff = s.Assignment.Staff
			m.Score = s.Assignment.Score
			m.Warning = affinity.Risky(s.Assignment.Score)
			if st, ok := idx.Lookup(s.Assignment.Staff); ok && st.Color != "" {
				m.Color = st.Color
			}
		}
		out = append(out, m)
	}
	return out
}

// Summary renders the reply shown to whoever issued the instruction,
// including a warning block listing risky assignments.
func (t Table) Summary(instruction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recalculated the assignment for instruction %q.", instruction)
	st := t.Stats()
	fmt.Fprintf(&b, "\n%d of %d sites assigned, mean affinity %.1f.", st.Assigned, st.Total, st.MeanScore)
	if len(st.Risk) == 0 {
		return b.String()
	}
	idx := model.IndexStaff(t.Staff)
	b.WriteString("\n\nWarning: the assignment contains poor matches!")
	for _, s := range st.Risk {
		name := string(s.Assignment.Staff)
		if staff, ok := idx.Lookup(s.Assignment.Staff); ok {
			name = staff.Name
		}
		fmt.Fprintf(&b, "\n- %s -> %s (%d: %s)", name, s.Name, s.Assignment.Score,
			affinity.Result{Rationale: s.Assignment.Rationale}.Joined())
	}
	return b.String()
}
