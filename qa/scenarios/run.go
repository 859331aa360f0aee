package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/assign"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
	"github.com/kilianp07/fieldassign/core/runlog"
	"github.com/kilianp07/fieldassign/core/session"
	"github.com/kilianp07/fieldassign/infra/logger"
	"github.com/kilianp07/fieldassign/infra/metrics"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	ro, err := sc.LoadRoster()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	store := runlog.NewMemoryStore()
	bus := eventbus.New[session.RunEvent]()
	defer bus.Close()

	engine := assign.NewEngine(assign.Options{
		NoviceKeywords:  sc.NoviceKeywords,
		TroubleKeywords: sc.TroubleKeywords,
		Seed:            sc.Seed,
		NoviceStaff:     model.StaffID(sc.NoviceStaff),
		Log:             logger.NopLogger{},
	})
	mgr := session.NewManager(engine, ro, session.Options{
		Store: store,
		Sink:  sink,
		Bus:   bus,
		Log:   logger.NopLogger{},
	})

	ctx := context.Background()
	s, err := mgr.Create(ctx)
	require.NoError(t, err)

	for i, step := range sc.Steps {
		before, err := mgr.Table(s.ID)
		require.NoError(t, err)

		var rule model.InstructionKind
		switch {
		case step.Reset:
			_, err = mgr.Reset(s.ID)
		case step.Preset != "":
			var out session.Outcome
			out, err = mgr.ApplyPreset(ctx, s.ID, step.Preset)
			rule = out.Rule
		default:
			var out session.Outcome
			out, err = mgr.Apply(ctx, s.ID, step.Instruction)
			rule = out.Rule
		}
		require.NoErrorf(t, err, "step %d", i+1)

		after, err := mgr.Table(s.ID)
		require.NoError(t, err)
		checkStep(t, i+1, step.Expect, rule, before, after)
	}

	recs, err := store.Query(ctx, runlog.Query{SessionID: s.ID})
	require.NoError(t, err)
	assert.Len(t, recs, sc.Expected.Runs, "run log records")
	assert.Equal(t, float64(sc.Expected.Runs), counterTotal(t, reg, "assignment_runs_total"), "runs counter")

	final, err := mgr.Get(s.ID)
	require.NoError(t, err)
	assert.Len(t, final.Messages, sc.Expected.Messages, "message history")
}

func checkStep(t *testing.T, n int, exp Expect, rule model.InstructionKind, before, after result.Table) {
	t.Helper()
	if exp.Rule != "" {
		assert.Equalf(t, exp.Rule, rule.String(), "step %d rule", n)
	}
	if exp.Assigned != nil {
		assert.Equalf(t, *exp.Assigned, after.Stats().Assigned, "step %d assigned sites", n)
	}
	if exp.Unchanged {
		assert.Equalf(t, before.Sites, after.Sites, "step %d changed the table", n)
	}
	for id, want := range exp.Routes {
		var got []string
		for _, r := range after.Routes() {
			if string(r.Staff.ID) != id {
				continue
			}
			for _, s := range r.Sites {
				got = append(got, s.Name)
			}
		}
		assert.Equalf(t, want, got, "step %d route of %s", n, id)
	}
	for name, want := range exp.Scores {
		var found bool
		for _, s := range after.Sites {
			if s.Name == name {
				found = true
				assert.Equalf(t, want, s.Assignment.Score, "step %d score of %s", n, name)
			}
		}
		assert.Truef(t, found, "step %d: no site %q", n, name)
	}
}

func counterTotal(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
