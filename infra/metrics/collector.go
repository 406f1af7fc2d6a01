package metrics

import (
	"context"

	"github.com/shotfleet/shotfleet/core/events"
	coremetrics "github.com/shotfleet/shotfleet/core/metrics"
	"github.com/shotfleet/shotfleet/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records offer
// latencies for events flowing through it, so sinks not wired into the
// manager directly still observe the offer traffic. It stops when the
// context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	lr, ok := sink.(coremetrics.LatencyRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, open := <-sub:
				if !open {
					return
				}
				if e, isOffer := ev.(events.OfferEvent); isOffer {
					_ = lr.RecordOfferLatency([]coremetrics.OfferLatency{{
						TechnicianID: e.TechnicianID,
						ProjectID:    e.ProjectID,
						Accepted:     e.Accepted,
						Latency:      e.Latency,
					}})
				}
			}
		}
	}()
}
