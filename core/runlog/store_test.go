package runlog

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
)

func sampleRecords(base time.Time) []Record {
	return []Record{
		{ID: "1", SessionID: "s1", Timestamp: base, Rule: model.InstructionNovice, Sites: []SiteRecord{{Site: "x", Staff: "C"}}},
		{ID: "2", SessionID: "s1", Timestamp: base.Add(time.Minute), Rule: model.InstructionTrouble, Sites: []SiteRecord{{Site: "x", Staff: "A"}}},
		{ID: "3", SessionID: "s2", Timestamp: base.Add(2 * time.Minute), Rule: model.InstructionDefault, Sites: []SiteRecord{{Site: "x", Staff: "B"}}},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()
	for _, r := range sampleRecords(base) {
		require.NoError(t, store.Append(ctx, r))
	}

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)

	out, err := store.Query(ctx, Query{SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = store.Query(ctx, Query{Rule: "trouble"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)

	out, err = store.Query(ctx, Query{StaffID: "B"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].ID)

	out, err = store.Query(ctx, Query{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ID)

	out, err = store.Query(ctx, Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "3", out[1].ID)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "runs.jsonl"), 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 5, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	big := make([]string, 2000)
	for i := range big {
		big[i] = "interpersonal conflict risk"
	}
	rec := Record{Timestamp: time.Now(), Sites: []SiteRecord{{Site: "x", Staff: "A", Rationale: big}}}
	for i := 0; i < 40; i++ {
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "runs-*.jsonl"))
	assert.NotEmpty(t, files, "expected rotated files")
	out, err := store.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	exerciseStore(t, store)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"memory", "jsonl", "rotating", "sqlite"} {
		cfg := Config{Backend: backend, Path: filepath.Join(dir, backend)}
		cfg.SetDefaults()
		require.NoError(t, cfg.Validate(), backend)
		s, err := Open(cfg)
		require.NoError(t, err, backend)
		require.NoError(t, s.Close())
	}
	_, err := Open(Config{Backend: "kafka"})
	assert.Error(t, err)
	assert.Error(t, Config{Backend: "kafka"}.Validate())
	assert.Error(t, Config{Backend: "sqlite"}.Validate())
}

func TestNewRecord(t *testing.T) {
	tbl := result.New(model.Office{}, nil, []model.Site{
		{Name: "a", Assignment: model.Assignment{Staff: "A", Score: 30, VisitOrder: 1, Rationale: []string{"interpersonal conflict risk"}}},
		{Name: "b", Assignment: model.Assignment{Staff: "A", Score: 90, VisitOrder: 2}},
		{Name: "c"},
	})
	ts := time.Unix(0, 0).UTC()
	rec := NewRecord("sess", "trouble", model.InstructionTrouble, tbl, ts)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 2, rec.Assigned)
	assert.Equal(t, 60.0, rec.MeanScore)
	assert.Equal(t, []string{"a"}, rec.RiskSites)
	require.Len(t, rec.Sites, 3)

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"id", "session_id", "timestamp", "instruction", "rule", "sites", "assigned", "mean_score", "risk_sites"} {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, "trouble", m["rule"])
}
