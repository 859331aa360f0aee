package metrics

import (
	"time"

	"github.com/kilianp07/fieldassign/core/model"
)

// SiteOutcome is the per-site part of an AssignmentRunEvent.
type SiteOutcome struct {
	Site       string
	Staff      model.StaffID
	Score      int
	VisitOrder int
}

// AssignmentRunEvent describes one completed assignment run.
type AssignmentRunEvent struct {
	RunID     string
	SessionID string
	Rule      model.InstructionKind
	Sites     []SiteOutcome
	Assigned  int
	MeanScore float64
	RiskSites int
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records assignment runs for observability purposes.
type MetricsSink interface {
	RecordAssignmentRun(ev AssignmentRunEvent) error
}

// SessionCountRecorder is implemented by sinks able to track live sessions.
type SessionCountRecorder interface {
	RecordSessionCount(n int) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignmentRun(AssignmentRunEvent) error { return nil }
func (NopSink) RecordSessionCount(int) error                 { return nil }

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignmentRun forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAssignmentRun(ev AssignmentRunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignmentRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSessionCount forwards the session count when supported by the sink.
func (m *MultiSink) RecordSessionCount(n int) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SessionCountRecorder); ok {
			if err := r.RecordSessionCount(n); err != nil {
				return err
			}
		}
	}
	return nil
}
