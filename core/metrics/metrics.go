// Package metrics defines the sink interfaces dispatch records its
// decisions through. Implementations live in infra/metrics.
package metrics

import (
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

// AssignmentRecord represents one staffing decision to be recorded.
type AssignmentRecord struct {
	ProjectID    string
	TechnicianID string
	OrgID        string
	Score        model.RankingScore
	Accepted     bool
	ScheduledAt  time.Time
	DecidedAt    time.Time
}

// MetricsSink records assignment outcomes for observability purposes.
type MetricsSink interface {
	RecordAssignments(records []AssignmentRecord) error
}

// OfferLatency captures how long a technician took to answer an offer.
type OfferLatency struct {
	TechnicianID string
	ProjectID    string
	Accepted     bool
	Latency      time.Duration
}

// LatencyRecorder records offer round-trip latencies.
type LatencyRecorder interface {
	RecordOfferLatency(recs []OfferLatency) error
}

// PoolSizeRecorder records the candidate pool size per ranking run.
type PoolSizeRecorder interface {
	RecordPoolSize(size int) error
}

// FulfillmentEvent captures an order state transition.
type FulfillmentEvent struct {
	SessionID string
	From      model.OrderStatus
	To        model.OrderStatus
	ProjectID string
	Time      time.Time
}

// FulfillmentRecorder records order fulfillment transitions.
type FulfillmentRecorder interface {
	RecordFulfillment(ev FulfillmentEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignments([]AssignmentRecord) error { return nil }

func (NopSink) RecordOfferLatency([]OfferLatency) error { return nil }

func (NopSink) RecordPoolSize(int) error { return nil }

func (NopSink) RecordFulfillment(FulfillmentEvent) error { return nil }
