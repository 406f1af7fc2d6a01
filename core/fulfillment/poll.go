package fulfillment

import (
	"context"
	"errors"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

// ErrStillProcessing is returned by Poll when the bounded wait elapsed
// while the order was not yet terminal. Success is likely still pending;
// callers should treat this as a soft timeout, not a failure.
var ErrStillProcessing = errors.New("order still processing")

// StatusReader is the read-only surface Poll drives. Implemented by
// Machine and by HTTP clients of the status endpoint.
type StatusReader interface {
	GetStatus(ctx context.Context, sessionID string) (Status, error)
}

// PollConfig tunes the client polling cadence.
type PollConfig struct {
	FastInterval time.Duration // cadence in the fast window
	SlowInterval time.Duration // cadence after the fast window
	FastWindow   time.Duration // how long to poll fast
	MaxWait      time.Duration // total wait budget
}

// DefaultPollConfig polls every second for ten seconds, then every two
// seconds, up to thirty seconds total.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		FastInterval: time.Second,
		SlowInterval: 2 * time.Second,
		FastWindow:   10 * time.Second,
		MaxWait:      30 * time.Second,
	}
}

// Poll repeatedly reads the order status at a decreasing frequency until
// it turns terminal or the wait budget runs out. PROJECT_CREATED,
// EXPIRED and CANCELLED return the status with a nil error; exceeding
// MaxWait while still processing returns the last observed status with
// ErrStillProcessing.
func Poll(ctx context.Context, reader StatusReader, sessionID string, cfg PollConfig) (Status, error) {
	if cfg.FastInterval <= 0 || cfg.SlowInterval <= 0 || cfg.MaxWait <= 0 {
		cfg = DefaultPollConfig()
	}
	deadline := time.Now().Add(cfg.MaxWait)
	fastUntil := time.Now().Add(cfg.FastWindow)

	var last Status
	for {
		st, err := reader.GetStatus(ctx, sessionID)
		if err != nil {
			return last, err
		}
		last = st
		if st.Status.Terminal() {
			return st, nil
		}
		if !time.Now().Before(deadline) {
			return last, ErrStillProcessing
		}
		interval := cfg.SlowInterval
		if time.Now().Before(fastUntil) {
			interval = cfg.FastInterval
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// NewOrder builds a PENDING_PAYMENT order for checkout. Kept here so
// order construction and the state machine share one package.
func NewOrder(id, orgID, sessionID string, scheduled time.Time, durationMinutes int, loc model.LatLng) model.Order {
	return model.Order{
		ID:                id,
		OrganizationID:    orgID,
		Status:            model.OrderPendingPayment,
		ExternalSessionID: sessionID,
		ScheduledTime:     scheduled,
		DurationMinutes:   durationMinutes,
		Location:          loc,
		CreatedAt:         time.Now(),
	}
}
