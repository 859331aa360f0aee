package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/infra/logger"
)

// InfluxSink writes assignment runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAssignmentRun writes one assignment_run point and one
// site_assignment point per assigned site in a single request.
func (s *InfluxSink) RecordAssignmentRun(ev coremetrics.AssignmentRunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, runPoints(ev)...)
}

// RecordSessionCount writes the number of live sessions.
func (s *InfluxSink) RecordSessionCount(n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_sessions").
		AddTag("component", "session_manager").
		AddField("count", n).
		SetTime(time.Now())
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func runPoints(ev coremetrics.AssignmentRunEvent) []*write.Point {
	points := make([]*write.Point, 0, len(ev.Sites)+1)
	points = append(points, write.NewPointWithMeasurement("assignment_run").
		AddTag("session_id", ev.SessionID).
		AddTag("rule", ev.Rule.String()).
		AddTag("run_id", ev.RunID).
		AddField("sites", len(ev.Sites)).
		AddField("assigned", ev.Assigned).
		AddField("mean_score", round3(ev.MeanScore)).
		AddField("risk_sites", ev.RiskSites).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time))
	for _, site := range ev.Sites {
		if site.Staff == "" {
			continue
		}
		points = append(points, write.NewPointWithMeasurement("site_assignment").
			AddTag("session_id", ev.SessionID).
			AddTag("run_id", ev.RunID).
			AddTag("site", site.Site).
			AddTag("staff_id", string(site.Staff)).
			AddField("score", site.Score).
			AddField("visit_order", site.VisitOrder).
			SetTime(ev.Time))
	}
	return points
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
