package metrics

import coremetrics "github.com/shotfleet/shotfleet/core/metrics"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignments forwards the records to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignments(recs); err != nil {
			return err
		}
	}
	return nil
}

// RecordOfferLatency forwards latency records to supporting sinks.
func (m *MultiSink) RecordOfferLatency(recs []coremetrics.OfferLatency) error {
	for _, s := range m.Sinks {
		if lr, ok := s.(coremetrics.LatencyRecorder); ok {
			if err := lr.RecordOfferLatency(recs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPoolSize forwards the pool size to supporting sinks.
func (m *MultiSink) RecordPoolSize(size int) error {
	for _, s := range m.Sinks {
		if pr, ok := s.(coremetrics.PoolSizeRecorder); ok {
			if err := pr.RecordPoolSize(size); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordFulfillment forwards order transitions to supporting sinks.
func (m *MultiSink) RecordFulfillment(ev coremetrics.FulfillmentEvent) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(coremetrics.FulfillmentRecorder); ok {
			if err := fr.RecordFulfillment(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
