package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/shotfleet/shotfleet/core/metrics"
)

// PromSink records staffing events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	pool        prometheus.Gauge
	transitions *prometheus.CounterVec
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The metrics HTTP server is started separately.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global one.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_decisions_total",
		Help: "Total number of scored assignment decisions",
	}, []string{"technician_id", "org_id", "accepted"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offer_answer_seconds",
		Help:    "Time between offer publish and technician answer",
		Buckets: prometheus.DefBuckets,
	}, []string{"technician_id", "accepted"})
	pool := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "candidate_pool_technicians_total",
		Help: "Number of schedulable technicians in the last ranking run",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order state machine transitions",
	}, []string{"from", "to"})

	for _, c := range []prometheus.Collector{assignments, latency, pool, transitions} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return &PromSink{assignments: assignments, latency: latency, pool: pool, transitions: transitions}, nil
}

// RecordAssignments increments the counter for each decision.
func (s *PromSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.assignments.WithLabelValues(r.TechnicianID, r.OrgID, strconv.FormatBool(r.Accepted)).Inc()
	}
	return nil
}

// RecordOfferLatency records the offer round-trip histogram.
func (s *PromSink) RecordOfferLatency(recs []coremetrics.OfferLatency) error {
	for _, r := range recs {
		s.latency.WithLabelValues(r.TechnicianID, strconv.FormatBool(r.Accepted)).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordPoolSize sets the gauge to the ranked pool size.
func (s *PromSink) RecordPoolSize(size int) error {
	s.pool.Set(float64(size))
	return nil
}

// RecordFulfillment counts the order transition.
func (s *PromSink) RecordFulfillment(ev coremetrics.FulfillmentEvent) error {
	s.transitions.WithLabelValues(ev.From.String(), ev.To.String()).Inc()
	return nil
}
