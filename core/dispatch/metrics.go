package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	offerLatency      *prometheus.HistogramVec
	offersSent        *prometheus.CounterVec
	acceptRate        *prometheus.GaugeVec
	notifySuccess     prometheus.Counter
	notifyFailure     prometheus.Counter
	candidatePoolSize prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.GaugeVec, prometheus.Counter, prometheus.Counter, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "offer_roundtrip_latency_seconds",
			Help:    "Latency of assignment offers from publish to answer",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"org_id"},
	)
	sent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_offers_total",
			Help: "Number of assignment offers sent to technicians",
		},
		[]string{"org_id"},
	)
	acc := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offer_accept_rate",
			Help: "Acceptance rate for assignment offers",
		},
		[]string{"org_id"},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_publish_success_total",
			Help: "Number of successful offer publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_publish_failure_total",
			Help: "Number of failed offer publish operations",
		},
	)
	pool := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranking_candidate_pool_size",
			Help: "Schedulable candidates returned by the last ranking run",
		},
	)
	return lat, sent, acc, suc, fail, pool
}

func init() {
	offerLatency, offersSent, acceptRate, notifySuccess, notifyFailure, candidatePoolSize = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(offerLatency, offersSent, acceptRate, notifySuccess, notifyFailure, candidatePoolSize)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	offerLatency, offersSent, acceptRate, notifySuccess, notifyFailure, candidatePoolSize = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
