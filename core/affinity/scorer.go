// Package affinity scores how well a staff member suits a job site.
//
// The score starts at BaseScore and every rule of the fixed rule table that
// matches adds its delta. Rules are independent and stack; the total is
// clamped to [MinScore, MaxScore] once at the end.
package affinity

import (
	"strings"

	"github.com/kilianp07/fieldassign/core/model"
)

const (
	BaseScore = 70
	MinScore  = 0
	MaxScore  = 100
	// RiskThreshold is the score at or below which an assignment is flagged.
	RiskThreshold = 40
)

// Rationale strings attached by the rules.
const (
	ReasonTechnicalFit       = "technical fit (strong)"
	ReasonTechnicalShortfall = "technical shortfall risk"
	ReasonInterpersonalFit   = "interpersonal fit (strong)"
	ReasonInterpersonalRisk  = "interpersonal conflict risk"
	ReasonOverqualified      = "overqualified / underused"
	ReasonStandard           = "standard match, no notable factors"
)

// Rule is one line of the affinity rule table.
type Rule struct {
	Reason string
	Delta  int
	Match  func(staff model.Staff, site model.Site) bool
}

var rules = []Rule{
	{
		Reason: ReasonTechnicalFit,
		Delta:  20,
		Match: func(st model.Staff, si model.Site) bool {
			return si.Difficulty == model.LevelHigh && st.Skill == model.SkillVeteran
		},
	},
	{
		Reason: ReasonTechnicalShortfall,
		Delta:  -30,
		Match: func(st model.Staff, si model.Site) bool {
			return si.Difficulty == model.LevelHigh && st.Skill == model.SkillNovice
		},
	},
	{
		Reason: ReasonInterpersonalFit,
		Delta:  20,
		Match: func(st model.Staff, si model.Site) bool {
			return si.Stress == model.LevelHigh && st.Interpersonal == model.LevelHigh
		},
	},
	{
		Reason: ReasonInterpersonalRisk,
		Delta:  -30,
		Match: func(st model.Staff, si model.Site) bool {
			return si.Stress == model.LevelHigh && st.Interpersonal == model.LevelLow
		},
	},
	{
		Reason: ReasonOverqualified,
		Delta:  -10,
		Match: func(st model.Staff, si model.Site) bool {
			return si.Difficulty == model.LevelLow && st.Skill == model.SkillVeteran
		},
	},
}

// Rules returns a copy of the rule table in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Result is the outcome of scoring one staff/site pair.
type Result struct {
	Score     int      `json:"score"`
	Rationale []string `json:"rationale"`
}

// Joined renders the rationale as a single line.
func (r Result) Joined() string { return strings.Join(r.Rationale, " / ") }

// Score computes the affinity of staff for site. It has no side effects and
// only looks at the two arguments.
func Score(staff model.Staff, site model.Site) Result {
	score := BaseScore
	var reasons []string
	for _, r := range rules {
		if r.Match(staff, site) {
			score += r.Delta
			reasons = append(reasons, r.Reason)
		}
	}
	if len(reasons) == 0 {
		reasons = []string{ReasonStandard}
	}
	return Result{Score: clamp(score), Rationale: reasons}
}

// Risky reports whether score is at or below RiskThreshold.
func Risky(score int) bool { return score <= RiskThreshold }

func clamp(v int) int {
	return max(MinScore, min(MaxScore, v))
}
