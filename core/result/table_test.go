package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/model"
)

func sampleTable() Table {
	staff := []model.Staff{
		{ID: "A", Name: "Sato", Color: "red"},
		{ID: "B", Name: "Suzuki", Color: "blue"},
		{ID: "C", Name: "Tanaka", Color: "green"},
	}
	sites := []model.Site{
		{Name: "s1", Location: model.Location{Lat: 1, Lon: 1}, Assignment: model.Assignment{Staff: "A", Score: 90, VisitOrder: 2}},
		{Name: "s2", Location: model.Location{Lat: 2, Lon: 2}, Assignment: model.Assignment{Staff: "A", Score: 30, Rationale: []string{"interpersonal conflict risk"}, VisitOrder: 1}},
		{Name: "s3", Location: model.Location{Lat: 3, Lon: 3}, Assignment: model.Assignment{Staff: "B", Score: 40, Rationale: []string{"technical shortfall risk"}, VisitOrder: 1}},
		{Name: "s4", Location: model.Location{Lat: 4, Lon: 4}},
	}
	return New(model.Office{Name: "office", Location: model.Location{Lat: 0, Lon: 0}}, staff, sites)
}

func TestRoutes(t *testing.T) {
	routes := sampleTable().Routes()
	require.Len(t, routes, 2)
	assert.Equal(t, model.StaffID("A"), routes[0].Staff.ID)
	assert.Equal(t, "s2", routes[0].Sites[0].Name)
	assert.Equal(t, "s1", routes[0].Sites[1].Name)
	assert.Equal(t, model.StaffID("B"), routes[1].Staff.ID)

	path := routes[0].Path(sampleTable().Office)
	assert.Equal(t, []model.Location{{Lat: 0, Lon: 0}, {Lat: 2, Lon: 2}, {Lat: 1, Lon: 1}}, path)
}

func TestStats(t *testing.T) {
	st := sampleTable().Stats()
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Assigned)
	assert.Equal(t, 1, st.Unassigned)
	// unassigned site excluded from the denominator
	assert.InDelta(t, (90.0+30.0+40.0)/3, st.MeanScore, 1e-9)
	require.Len(t, st.Risk, 2)
	assert.Equal(t, "s2", st.Risk[0].Name)
	assert.Equal(t, "s3", st.Risk[1].Name)
}

func TestStatsEmpty(t *testing.T) {
	st := New(model.Office{}, nil, []model.Site{{Name: "x"}}).Stats()
	assert.Zero(t, st.Assigned)
	assert.Zero(t, st.MeanScore)
	assert.Empty(t, st.Risk)
}

func TestGradeOf(t *testing.T) {
	assert.Equal(t, GradeGood, GradeOf(80))
	assert.Equal(t, GradeFair, GradeOf(79))
	assert.Equal(t, GradeFair, GradeOf(50))
	assert.Equal(t, GradePoor, GradeOf(49))
}

func TestMarkers(t *testing.T) {
	ms := sampleTable().Markers()
	require.Len(t, ms, 4)
	assert.Equal(t, "red", ms[0].Color)
	assert.False(t, ms[0].Warning)
	assert.True(t, ms[1].Warning)
	assert.True(t, ms[2].Warning)
	assert.Equal(t, "gray", ms[3].Color)
	assert.False(t, ms[3].Warning)
}

func TestSummary(t *testing.T) {
	s := sampleTable().Summary("trouble")
	assert.Contains(t, s, `instruction "trouble"`)
	assert.Contains(t, s, "3 of 4 sites assigned")
	assert.Contains(t, s, "- Sato -> s2 (30: interpersonal conflict risk)")
	assert.Contains(t, s, "- Suzuki -> s3 (40: technical shortfall risk)")

	calm := New(model.Office{}, nil, []model.Site{{Name: "x", Assignment: model.Assignment{Staff: "A", Score: 90}}}).Summary("go")
	assert.NotContains(t, calm, "Warning")
}
