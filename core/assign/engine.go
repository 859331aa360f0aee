// Package assign implements the instruction-driven assignment engine.
//
// An assignment run classifies the instruction, reassigns staff to sites
// according to the selected rule, scores every assigned pair and renumbers the
// visit order of each staff member. The engine never mutates its inputs; it
// returns a freshly computed table which the caller publishes as a whole.
package assign

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/kilianp07/fieldassign/core/affinity"
	"github.com/kilianp07/fieldassign/core/logger"
	"github.com/kilianp07/fieldassign/core/model"
)

// Rand is the random source used by the random branches. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Options configures an Engine.
type Options struct {
	NoviceKeywords  []string
	TroubleKeywords []string
	// NoviceStaff designates the staff member the novice rule routes easy
	// sites to. Empty selects the first novice of the staff list. The other
	// sites go to the seniors: every remaining member above novice skill.
	NoviceStaff model.StaffID
	// Seed makes the engine deterministic when non-zero.
	Seed uint64
	Rand Rand
	Log  logger.Logger
}

// Engine assigns staff to sites. It is safe for concurrent use.
type Engine struct {
	classifier  model.Classifier
	noviceStaff model.StaffID
	log         logger.Logger

	mu  sync.Mutex // guards rng
	rng Rand
}

// Run is the outcome of one assignment run.
type Run struct {
	Instruction string
	Rule        model.InstructionKind
	Sites       []model.Site
}

// InvariantError reports an assignee that does not exist in the staff list.
// It is raised with panic: assignees always originate from the known staff so
// reaching it is a programming error.
type InvariantError struct {
	Site  string
	Staff model.StaffID
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("assign: site %q references unknown staff %q", e.Site, e.Staff)
}

// NewEngine creates an Engine. Without Rand or Seed the engine draws from an
// unseeded generator and is non-deterministic.
func NewEngine(opts Options) *Engine {
	rng := opts.Rand
	if rng == nil {
		if opts.Seed != 0 {
			rng = rand.New(rand.NewPCG(opts.Seed, opts.Seed))
		} else {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
	}
	return &Engine{
		classifier:  model.NewClassifier(opts.NoviceKeywords, opts.TroubleKeywords),
		noviceStaff: opts.NoviceStaff,
		rng:         rng,
		log:         logger.OrNop(opts.Log),
	}
}

// Classify exposes the rule the engine would select for an instruction.
func (e *Engine) Classify(instruction string) model.InstructionKind {
	return e.classifier.Classify(instruction)
}

// Assign runs the engine over a copy of sites and returns the new table.
func (e *Engine) Assign(instruction string, sites []model.Site, staff []model.Staff) Run {
	return e.AssignKind(e.classifier.Classify(instruction), instruction, sites, staff)
}

// AssignKind is Assign with the rule already chosen. instruction is only
// recorded on the returned Run.
func (e *Engine) AssignKind(rule model.InstructionKind, instruction string, sites []model.Site, staff []model.Staff) Run {
	out := model.CloneSites(sites)

	e.mu.Lock()
	switch rule {
	case model.InstructionNovice:
		e.assignNovice(out, staff)
	case model.InstructionTrouble:
		e.assignAll(out, staff)
	default:
		e.assignUnassigned(out, staff)
	}
	e.mu.Unlock()

	scoreSites(out, model.IndexStaff(staff))
	orderVisits(out)

	observeRun(rule, out)
	e.log.Debugw("assignment run", map[string]any{
		"rule":     rule.String(),
		"sites":    len(out),
		"staff":    len(staff),
		"assigned": countAssigned(out),
	})
	return Run{Instruction: instruction, Rule: rule, Sites: out}
}

// assignNovice routes every low difficulty site to the designated novice and
// the remaining sites to a random senior. Prior assignments are overwritten.
func (e *Engine) assignNovice(sites []model.Site, staff []model.Staff) {
	novice, seniors := e.partitionStaff(staff)
	if novice == model.Unassigned {
		e.log.Warnf("novice rule: no novice staff member, easy sites left untouched")
	}
	if len(seniors) == 0 {
		e.log.Warnf("novice rule: no senior staff members, other sites left untouched")
	}
	for i := range sites {
		if sites[i].Difficulty == model.LevelLow {
			if novice != model.Unassigned {
				sites[i].Assignment.Staff = novice
			}
			continue
		}
		if len(seniors) > 0 {
			sites[i].Assignment.Staff = seniors[e.rng.IntN(len(seniors))]
		}
	}
}

// assignAll reassigns every site to a random staff member.
func (e *Engine) assignAll(sites []model.Site, staff []model.Staff) {
	if len(staff) == 0 {
		return
	}
	for i := range sites {
		sites[i].Assignment.Staff = staff[e.rng.IntN(len(staff))].ID
	}
}

// assignUnassigned fills only sites without an assignee.
func (e *Engine) assignUnassigned(sites []model.Site, staff []model.Staff) {
	if len(staff) == 0 {
		return
	}
	for i := range sites {
		if !sites[i].Assigned() {
			sites[i].Assignment.Staff = staff[e.rng.IntN(len(staff))].ID
		}
	}
}

func (e *Engine) partitionStaff(staff []model.Staff) (model.StaffID, []model.StaffID) {
	novice := e.noviceStaff
	if novice != model.Unassigned {
		if _, ok := model.IndexStaff(staff).Lookup(novice); !ok {
			e.log.Warnf("novice rule: configured novice %s is not on the roster", novice)
			novice = model.Unassigned
		}
	} else {
		for _, s := range staff {
			if s.Skill == model.SkillNovice {
				novice = s.ID
				break
			}
		}
	}
	seniors := make([]model.StaffID, 0, len(staff))
	for _, s := range staff {
		if s.ID != novice && s.Skill > model.SkillNovice {
			seniors = append(seniors, s.ID)
		}
	}
	return novice, seniors
}

// scoreSites recomputes score and rationale for every assigned site and
// clears them on unassigned ones.
func scoreSites(sites []model.Site, idx model.StaffIndex) {
	for i := range sites {
		a := &sites[i].Assignment
		if a.Staff == model.Unassigned {
			a.Score = 0
			a.Rationale = nil
			continue
		}
		st, ok := idx.Lookup(a.Staff)
		if !ok {
			panic(InvariantError{Site: sites[i].Name, Staff: a.Staff})
		}
		res := affinity.Score(st, sites[i])
		a.Score = res.Score
		a.Rationale = res.Rationale
	}
}

// orderVisits numbers each staff member's sites 1..k in table order.
func orderVisits(sites []model.Site) {
	next := make(map[model.StaffID]int)
	for i := range sites {
		a := &sites[i].Assignment
		if a.Staff == model.Unassigned {
			a.VisitOrder = 0
			continue
		}
		next[a.Staff]++
		a.VisitOrder = next[a.Staff]
	}
}

func countAssigned(sites []model.Site) int {
	n := 0
	for _, s := range sites {
		if s.Assigned() {
			n++
		}
	}
	return n
}
