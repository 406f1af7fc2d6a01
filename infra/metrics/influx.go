package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/shotfleet/shotfleet/core/metrics"
	"github.com/shotfleet/shotfleet/infra/logger"
)

// InfluxSink writes staffing events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink for the given InfluxDB endpoint.
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

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails, so a down metrics backend never
// blocks dispatch.
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

// RecordAssignments writes each decision as a point.
func (s *InfluxSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("assignment_decision").
			AddTag("technician_id", r.TechnicianID).
			AddTag("project_id", r.ProjectID).
			AddTag("org_id", r.OrgID).
			AddTag("accepted", strconv.FormatBool(r.Accepted)).
			AddField("total_score", round3(r.Score.TotalScore)).
			AddField("distance_km", round3(r.Score.DistanceKm)).
			AddField("reliability_score", round3(r.Score.ReliabilityScore)).
			AddField("skill_match_score", round3(r.Score.SkillMatchScore)).
			SetTime(r.DecidedAt)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordOfferLatency writes offer round-trip times.
func (s *InfluxSink) RecordOfferLatency(recs []coremetrics.OfferLatency) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("offer_latency").
			AddTag("technician_id", r.TechnicianID).
			AddTag("project_id", r.ProjectID).
			AddTag("accepted", strconv.FormatBool(r.Accepted)).
			AddField("latency_ms", float64(r.Latency.Milliseconds())).
			SetTime(time.Now())
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordFulfillment writes an order transition point.
func (s *InfluxSink) RecordFulfillment(ev coremetrics.FulfillmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("order_transition").
		AddTag("session_id", ev.SessionID).
		AddTag("from", ev.From.String()).
		AddTag("to", ev.To.String()).
		AddField("project_id", ev.ProjectID).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
