package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldassign/core/assign"
	"github.com/kilianp07/fieldassign/core/logger"
	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
	"github.com/kilianp07/fieldassign/core/runlog"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

// Options carries the optional collaborators of a Manager.
type Options struct {
	Store runlog.Store
	Sink  coremetrics.MetricsSink
	Bus   *eventbus.Bus[RunEvent]
	Log   logger.Logger
	Now   func() time.Time
}

type entry struct {
	mu sync.Mutex
	s  Session
}

// Manager owns every live session. Runs on the same session are serialised;
// runs on different sessions proceed concurrently.
type Manager struct {
	engine *assign.Engine
	roster model.Roster

	store runlog.Store
	sink  coremetrics.MetricsSink
	bus   *eventbus.Bus[RunEvent]
	log   logger.Logger
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a Manager seeding every session from roster.
func NewManager(engine *assign.Engine, roster model.Roster, opts Options) *Manager {
	m := &Manager{
		engine:   engine,
		roster:   roster,
		store:    opts.Store,
		sink:     opts.Sink,
		bus:      opts.Bus,
		log:      logger.OrNop(opts.Log),
		now:      opts.Now,
		sessions: make(map[string]*entry),
	}
	if m.sink == nil {
		m.sink = coremetrics.NopSink{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Roster returns the reference data sessions are created from.
func (m *Manager) Roster() model.Roster { return m.roster }

// Engine returns the engine used for runs.
func (m *Manager) Engine() *assign.Engine { return m.engine }

// Create starts a new session holding the initial roster sites.
func (m *Manager) Create(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Sites:     model.CloneSites(m.roster.Sites),
		Messages:  []Message{{Role: RoleAssistant, Text: WelcomeMessage, Time: now}},
	}
	m.mu.Lock()
	m.sessions[s.ID] = &entry{s: s}
	n := len(m.sessions)
	m.mu.Unlock()

	m.recordSessionCount(n)
	m.log.Infof("session %s created", s.ID)
	return s.clone(), nil
}

// Get returns a snapshot of the session.
func (m *Manager) Get(id string) (Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.clone(), nil
}

// Table returns the current assignment table of the session.
func (m *Manager) Table(id string) (result.Table, error) {
	s, err := m.Get(id)
	if err != nil {
		return result.Table{}, err
	}
	return m.table(s.Sites), nil
}

// List returns snapshots of all sessions ordered by creation time.
func (m *Manager) List() []Session {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.s.clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	m.recordSessionCount(n)
	m.log.Infof("session %s deleted", id)
	return nil
}

// Reset restores the initial roster sites and clears the chat history.
func (m *Manager) Reset(id string) (Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Session{}, err
	}
	now := m.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.s.Sites = model.CloneSites(m.roster.Sites)
	e.s.Messages = []Message{{Role: RoleAssistant, Text: WelcomeMessage, Time: now}}
	e.s.UpdatedAt = now
	return e.s.clone(), nil
}

// Apply runs the engine for instruction on the session. The new table
// replaces the previous one in a single step; readers never observe a
// partially updated table.
func (m *Manager) Apply(ctx context.Context, id, instruction string) (Outcome, error) {
	if strings.TrimSpace(instruction) == "" {
		return Outcome{}, ErrEmptyInstruction
	}
	return m.apply(ctx, id, instruction, m.engine.Classify(instruction))
}

// ApplyPreset runs the rule of a preset whatever keywords the engine is
// configured with.
func (m *Manager) ApplyPreset(ctx context.Context, id, preset string) (Outcome, error) {
	p, err := LookupPreset(preset)
	if err != nil {
		return Outcome{}, err
	}
	return m.apply(ctx, id, p.Instruction, p.Rule)
}

func (m *Manager) apply(ctx context.Context, id, instruction string, rule model.InstructionKind) (Outcome, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Outcome{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	start := m.now()
	run := m.engine.AssignKind(rule, instruction, e.s.Sites, m.roster.Staff)
	elapsed := m.now().Sub(start)

	table := m.table(run.Sites)
	summary := table.Summary(instruction)
	rec := runlog.NewRecord(id, instruction, run.Rule, table, start)

	e.s.Sites = run.Sites
	e.s.Runs++
	e.s.UpdatedAt = start
	e.s.Messages = append(e.s.Messages,
		Message{Role: RoleUser, Text: instruction, Time: start},
		Message{Role: RoleAssistant, Text: summary, Time: start},
	)

	if m.store != nil {
		if err := m.store.Append(ctx, rec); err != nil {
			m.log.Errorf("session %s: run log append: %v", id, err)
		}
	}
	if err := m.sink.RecordAssignmentRun(runEvent(rec, table, elapsed)); err != nil {
		m.log.Errorf("session %s: metrics: %v", id, err)
	}
	if m.bus != nil {
		m.bus.Publish(RunEvent{
			RunID:       rec.ID,
			SessionID:   id,
			Instruction: instruction,
			Rule:        run.Rule,
			Table:       m.table(model.CloneSites(run.Sites)),
			Summary:     summary,
			Time:        start,
		})
	}
	m.log.Infof("session %s: applied %s rule, %d/%d sites assigned", id, run.Rule, rec.Assigned, len(run.Sites))

	return Outcome{
		RunID:   rec.ID,
		Rule:    run.Rule,
		Table:   m.table(model.CloneSites(run.Sites)),
		Stats:   table.Stats(),
		Summary: summary,
	}, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *Manager) table(sites []model.Site) result.Table {
	return result.New(m.roster.Office, m.roster.Staff, sites)
}

func (m *Manager) recordSessionCount(n int) {
	r, ok := m.sink.(coremetrics.SessionCountRecorder)
	if !ok {
		return
	}
	if err := r.RecordSessionCount(n); err != nil {
		m.log.Errorf("record session count: %v", err)
	}
}

func runEvent(rec runlog.Record, t result.Table, d time.Duration) coremetrics.AssignmentRunEvent {
	ev := coremetrics.AssignmentRunEvent{
		RunID:     rec.ID,
		SessionID: rec.SessionID,
		Rule:      rec.Rule,
		Assigned:  rec.Assigned,
		MeanScore: rec.MeanScore,
		RiskSites: len(rec.RiskSites),
		Duration:  d,
		Time:      rec.Timestamp,
	}
	for _, s := range t.Sites {
		ev.Sites = append(ev.Sites, coremetrics.SiteOutcome{
			Site:       s.Name,
			Staff:      s.Assignment.Staff,
			Score:      s.Assignment.Score,
			VisitOrder: s.Assignment.VisitOrder,
		})
	}
	return ev
}
