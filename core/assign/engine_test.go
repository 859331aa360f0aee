package assign

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/affinity"
	"github.com/kilianp07/fieldassign/core/model"
)

// seqRand returns the scripted values in order, modulo n.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

func testStaff() []model.Staff {
	return []model.Staff{
		{ID: "A", Name: "Sato", Skill: model.SkillVeteran, Interpersonal: model.LevelLow},
		{ID: "B", Name: "Suzuki", Skill: model.SkillMidLevel, Interpersonal: model.LevelHigh},
		{ID: "C", Name: "Tanaka", Skill: model.SkillNovice, Interpersonal: model.LevelHigh},
	}
}

func testSites() []model.Site {
	return []model.Site{
		{Name: "Aoba", Difficulty: model.LevelHigh, Stress: model.LevelLow},
		{Name: "Chuo", Difficulty: model.LevelLow, Stress: model.LevelHigh},
		{Name: "Kohoku", Difficulty: model.LevelMedium, Stress: model.LevelLow},
		{Name: "Midori", Difficulty: model.LevelLow, Stress: model.LevelMedium},
		{Name: "Minami", Difficulty: model.LevelHigh, Stress: model.LevelHigh},
	}
}

func checkVisitOrder(t *testing.T, sites []model.Site) {
	t.Helper()
	orders := map[model.StaffID][]int{}
	for _, s := range sites {
		if !s.Assigned() {
			require.Zero(t, s.Assignment.VisitOrder, "unassigned site %s must have order 0", s.Name)
			continue
		}
		orders[s.Assignment.Staff] = append(orders[s.Assignment.Staff], s.Assignment.VisitOrder)
	}
	for id, os := range orders {
		seen := make(map[int]bool, len(os))
		for _, o := range os {
			require.True(t, o >= 1 && o <= len(os), "staff %s order %d out of 1..%d", id, o, len(os))
			require.False(t, seen[o], "staff %s duplicate order %d", id, o)
			seen[o] = true
		}
	}
}

func checkScores(t *testing.T, sites []model.Site, staff []model.Staff) {
	t.Helper()
	idx := model.IndexStaff(staff)
	for _, s := range sites {
		if !s.Assigned() {
			assert.Zero(t, s.Assignment.Score)
			assert.Empty(t, s.Assignment.Rationale)
			continue
		}
		want := affinity.Score(idx[s.Assignment.Staff], s)
		assert.Equal(t, want.Score, s.Assignment.Score, s.Name)
		assert.Equal(t, want.Rationale, s.Assignment.Rationale, s.Name)
	}
}

func TestAssign_NoviceRule(t *testing.T) {
	staff := testStaff()
	for seed := uint64(1); seed <= 20; seed++ {
		sites := testSites()
		// a previous run placed the veteran on an easy site
		sites[1].Assignment.Staff = "A"
		e := NewEngine(Options{Seed: seed})
		run := e.Assign("新人に簡単な現場を優先して", sites, staff)
		require.Equal(t, model.InstructionNovice, run.Rule)
		for _, s := range run.Sites {
			if s.Difficulty == model.LevelLow {
				assert.Equal(t, model.StaffID("C"), s.Assignment.Staff, s.Name)
			} else {
				assert.Contains(t, []model.StaffID{"A", "B"}, s.Assignment.Staff, s.Name)
			}
		}
		checkVisitOrder(t, run.Sites)
		checkScores(t, run.Sites, staff)
	}
}

func TestAssign_NoviceRuleConfiguredStaff(t *testing.T) {
	e := NewEngine(Options{NoviceStaff: "B", Rand: &seqRand{vals: []int{0}}})
	run := e.Assign("novice", testSites(), testStaff())
	for _, s := range run.Sites {
		if s.Difficulty == model.LevelLow {
			assert.Equal(t, model.StaffID("B"), s.Assignment.Staff)
		} else {
			// C is a novice, so A is the only senior
			assert.Equal(t, model.StaffID("A"), s.Assignment.Staff)
		}
	}
}

func TestAssign_NoviceRuleSkipsOtherNovices(t *testing.T) {
	staff := append(testStaff(), model.Staff{ID: "D", Name: "Ito", Skill: model.SkillNovice, Interpersonal: model.LevelLow})
	for seed := uint64(1); seed <= 20; seed++ {
		e := NewEngine(Options{Seed: seed})
		run := e.Assign("novice", testSites(), staff)
		for _, s := range run.Sites {
			if s.Difficulty == model.LevelLow {
				assert.Equal(t, model.StaffID("C"), s.Assignment.Staff, s.Name)
			} else {
				assert.Contains(t, []model.StaffID{"A", "B"}, s.Assignment.Staff, s.Name)
			}
		}
	}
}

func TestAssignKindIgnoresKeywords(t *testing.T) {
	e := NewEngine(Options{NoviceKeywords: []string{"rookie"}, Seed: 9})
	run := e.AssignKind(model.InstructionNovice, "Give the easy sites to the novice first", testSites(), testStaff())
	assert.Equal(t, model.InstructionNovice, run.Rule)
	assert.Equal(t, "Give the easy sites to the novice first", run.Instruction)
	for _, s := range run.Sites {
		if s.Difficulty == model.LevelLow {
			assert.Equal(t, model.StaffID("C"), s.Assignment.Staff, s.Name)
		}
	}
	assert.Equal(t, model.InstructionDefault, e.Classify("Give the easy sites to the novice first"))
}

func TestAssign_NoviceRuleWithoutNovice(t *testing.T) {
	staff := testStaff()[:2]
	e := NewEngine(Options{Seed: 3})
	run := e.Assign("novice", testSites(), staff)
	for _, s := range run.Sites {
		if s.Difficulty == model.LevelLow {
			assert.False(t, s.Assigned(), "easy sites stay untouched without a novice")
		} else {
			assert.True(t, s.Assigned())
		}
	}
	checkVisitOrder(t, run.Sites)
}

func TestAssign_TroubleRule(t *testing.T) {
	staff := testStaff()
	sites := testSites()
	sites[0].Assignment = model.Assignment{Staff: "A", Score: 90, VisitOrder: 1}
	e := NewEngine(Options{Rand: &seqRand{vals: []int{2, 1, 0, 2, 1}}})
	run := e.Assign("トラブル発生、配置をリセットして", sites, staff)
	require.Equal(t, model.InstructionTrouble, run.Rule)
	want := []model.StaffID{"C", "B", "A", "C", "B"}
	for i, s := range run.Sites {
		assert.Equal(t, want[i], s.Assignment.Staff, s.Name)
	}
	assert.Equal(t, []int{1, 1, 1, 2, 2}, visitOrders(run.Sites))
	checkScores(t, run.Sites, staff)
}

func TestAssign_TroubleCoversEverySite(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		run := NewEngine(Options{Seed: seed}).Assign("trouble", testSites(), testStaff())
		for _, s := range run.Sites {
			require.True(t, s.Assigned())
		}
		checkVisitOrder(t, run.Sites)
	}
}

func TestAssign_DefaultRuleIsIdempotentOnAssignees(t *testing.T) {
	staff := testStaff()
	e := NewEngine(Options{Seed: 7})
	first := e.Assign("バランスよく再配置して", testSites(), staff)
	require.Equal(t, model.InstructionDefault, first.Rule)
	for _, s := range first.Sites {
		require.True(t, s.Assigned())
	}
	second := e.Assign("rebalance please", first.Sites, staff)
	for i := range first.Sites {
		assert.Equal(t, first.Sites[i].Assignment.Staff, second.Sites[i].Assignment.Staff)
	}
	assert.Equal(t, first.Sites, second.Sites)
}

func TestAssign_DefaultRuleKeepsExistingAssignees(t *testing.T) {
	sites := testSites()
	sites[4].Assignment.Staff = "C"
	run := NewEngine(Options{Seed: 11}).Assign("", sites, testStaff())
	assert.Equal(t, model.StaffID("C"), run.Sites[4].Assignment.Staff)
	// novice on a hard stressful site but a strong communicator: 70-30+20
	assert.Equal(t, 60, run.Sites[4].Assignment.Score)
}

func TestAssign_DoesNotMutateInput(t *testing.T) {
	sites := testSites()
	sites[0].Assignment = model.Assignment{Staff: "A", Score: 1, Rationale: []string{"stale"}, VisitOrder: 9}
	_ = NewEngine(Options{Seed: 5}).Assign("trouble", sites, testStaff())
	assert.Equal(t, model.Assignment{Staff: "A", Score: 1, Rationale: []string{"stale"}, VisitOrder: 9}, sites[0].Assignment)
	assert.False(t, sites[1].Assigned())
}

func TestAssign_EmptyInputs(t *testing.T) {
	e := NewEngine(Options{Seed: 1})
	for _, instr := range []string{"novice", "trouble", "other"} {
		run := e.Assign(instr, testSites(), nil)
		for _, s := range run.Sites {
			assert.False(t, s.Assigned())
			assert.Zero(t, s.Assignment.VisitOrder)
		}
		assert.Empty(t, e.Assign(instr, nil, testStaff()).Sites)
	}
}

func TestAssign_UnknownAssigneePanics(t *testing.T) {
	sites := testSites()
	sites[2].Assignment.Staff = "Z"
	e := NewEngine(Options{Seed: 1})
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(InvariantError)
		require.True(t, ok, "unexpected panic value %v", r)
		assert.Equal(t, model.StaffID("Z"), err.Staff)
		assert.Contains(t, err.Error(), "Kohoku")
	}()
	e.Assign("keep going", sites, testStaff())
}

func TestAssign_SeededEnginesAgree(t *testing.T) {
	a := NewEngine(Options{Seed: 42}).Assign("trouble", testSites(), testStaff())
	b := NewEngine(Options{Seed: 42}).Assign("trouble", testSites(), testStaff())
	assert.Equal(t, a.Sites, b.Sites)
}

func TestAssign_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)
	defer ResetMetrics(nil)

	e := NewEngine(Options{Rand: &seqRand{vals: []int{2}}})
	// everything goes to the novice: Aoba 40, Chuo 90, Kohoku 70, Midori 70, Minami 60
	e.Assign("trouble", testSites(), testStaff())
	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("trouble")))
	assert.Equal(t, 1.0, testutil.ToFloat64(riskSites))
	assert.Equal(t, 1, testutil.CollectAndCount(affinityScore))
}

func visitOrders(sites []model.Site) []int {
	out := make([]int, len(sites))
	for i, s := range sites {
		out[i] = s.Assignment.VisitOrder
	}
	return out
}
