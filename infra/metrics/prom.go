package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
)

// PromSink records assignment runs in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	scores   *prometheus.HistogramVec
	duration prometheus.Histogram
	mean     *prometheus.GaugeVec
	risk     *prometheus.GaugeVec
	sessions prometheus.Gauge
}

// NewPromSink registers run metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assignment_runs_total",
			Help: "Total number of assignment runs",
		}, []string{"rule"}),
		scores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assignment_site_score",
			Help:    "Affinity score of each assigned site per run",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}, []string{"staff_id"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assignment_run_duration_seconds",
			Help:    "Time spent computing an assignment run",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		mean: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "assignment_mean_score",
			Help: "Mean affinity score over assigned sites after the last run",
		}, []string{"session_id"}),
		risk: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "assignment_risk_sites",
			Help: "Number of risky assignments after the last run",
		}, []string{"session_id"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "assignment_sessions",
			Help: "Number of live sessions",
		}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.scores, err = register(reg, s.scores); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.mean, err = register(reg, s.mean); err != nil {
		return nil, err
	}
	if s.risk, err = register(reg, s.risk); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, s.sessions); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignmentRun updates the run counters and score distributions.
func (s *PromSink) RecordAssignmentRun(ev coremetrics.AssignmentRunEvent) error {
	s.runs.WithLabelValues(ev.Rule.String()).Inc()
	for _, site := range ev.Sites {
		if site.Staff == "" {
			continue
		}
		s.scores.WithLabelValues(string(site.Staff)).Observe(float64(site.Score))
	}
	s.duration.Observe(ev.Duration.Seconds())
	s.mean.WithLabelValues(ev.SessionID).Set(ev.MeanScore)
	s.risk.WithLabelValues(ev.SessionID).Set(float64(ev.RiskSites))
	return nil
}

// RecordSessionCount sets the live session gauge.
func (s *PromSink) RecordSessionCount(n int) error {
	s.sessions.Set(float64(n))
	return nil
}
