package assign

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fieldassign/core/affinity"
	"github.com/kilianp07/fieldassign/core/model"
)

var (
	runsTotal     *prometheus.CounterVec
	affinityScore prometheus.Histogram
	riskSites     prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Gauge) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assign_runs_total",
			Help: "Number of assignment runs by selected rule",
		},
		[]string{"rule"},
	)
	score := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assign_affinity_score",
			Help:    "Affinity scores of assigned sites",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
	risk := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assign_risk_sites",
			Help: "Assigned sites at or below the risk threshold after the last run",
		},
	)
	return runs, score, risk
}

func init() {
	runsTotal, affinityScore, riskSites = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, affinityScore, riskSites)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, affinityScore, riskSites = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func observeRun(rule model.InstructionKind, sites []model.Site) {
	runsTotal.WithLabelValues(rule.String()).Inc()
	risky := 0
	for _, s := range sites {
		if !s.Assigned() {
			continue
		}
		affinityScore.Observe(float64(s.Assignment.Score))
		if affinity.Risky(s.Assignment.Score) {
			risky++
		}
	}
	riskSites.Set(float64(risky))
}
