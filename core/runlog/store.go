// Package runlog persists one record per assignment run and supports
// filtered queries over the history.
package runlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
)

// SiteRecord captures the assignment of one site after a run.
type SiteRecord struct {
	Site       string        `json:"site"`
	Staff      model.StaffID `json:"staff"`
	Score      int           `json:"score"`
	VisitOrder int           `json:"visit_order"`
	Rationale  []string      `json:"rationale,omitempty"`
}

// Record captures one assignment run.
type Record struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"session_id"`
	Timestamp   time.Time             `json:"timestamp"`
	Instruction string                `json:"instruction"`
	Rule        model.InstructionKind `json:"rule"`
	Sites       []SiteRecord          `json:"sites"`
	Assigned    int                   `json:"assigned"`
	MeanScore   float64               `json:"mean_score"`
	RiskSites   []string              `json:"risk_sites,omitempty"`
}

// NewRecord builds a Record from the table produced by a run.
func NewRecord(sessionID, instruction string, rule model.InstructionKind, t result.Table, ts time.Time) Record {
	st := t.Stats()
	rec := Record{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Timestamp:   ts,
		Instruction: instruction,
		Rule:        rule,
		Assigned:    st.Assigned,
		MeanScore:   st.MeanScore,
	}
	for _, s := range t.Sites {
		rec.Sites = append(rec.Sites, SiteRecord{
			Site:       s.Name,
			Staff:      s.Assignment.Staff,
			Score:      s.Assignment.Score,
			VisitOrder: s.Assignment.VisitOrder,
			Rationale:  s.Assignment.Rationale,
		})
	}
	for _, s := range st.Risk {
		rec.RiskSites = append(rec.RiskSites, s.Name)
	}
	return rec
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	SessionID string
	StaffID   model.StaffID
	// Rule is the String form of an InstructionKind.
	Rule  string
	Limit int
}

// Match reports whether r satisfies the query filters.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.SessionID != "" && r.SessionID != q.SessionID {
		return false
	}
	if q.Rule != "" && r.Rule.String() != q.Rule {
		return false
	}
	if q.StaffID != model.Unassigned {
		for _, s := range r.Sites {
			if s.Staff == q.StaffID {
				return true
			}
		}
		return false
	}
	return true
}

// limit truncates recs to the query limit.
func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
