package fulfillment

import (
	"context"
	"time"

	"github.com/shotfleet/shotfleet/core/logger"
	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
)

// Reconciler resumes orders stranded by partial failures and expires
// stale checkouts. An order stuck in PAYMENT_COMPLETED (payment recorded
// but project creation failed mid-flight) is retried through the same
// session-keyed creation step, so the user only ever observes "still
// processing" until it lands.
type Reconciler struct {
	machine *Machine
	orders  repo.OrderRepository
	log     logger.Logger

	// PendingTTL bounds how long an order may sit in PENDING_PAYMENT
	// before the sweep expires it.
	PendingTTL time.Duration
	now        func() time.Time
}

// NewReconciler creates a reconciler with the given pending-order TTL.
func NewReconciler(machine *Machine, orders repo.OrderRepository, log logger.Logger, pendingTTL time.Duration) *Reconciler {
	if pendingTTL <= 0 {
		pendingTTL = 30 * time.Minute
	}
	return &Reconciler{machine: machine, orders: orders, log: log, PendingTTL: pendingTTL, now: time.Now}
}

// Sweep runs one reconciliation pass: resume stuck fulfillments, then
// expire overdue pending orders.
func (r *Reconciler) Sweep(ctx context.Context) {
	stuck, err := r.orders.ListOrdersByStatus(ctx, model.OrderPaymentCompleted)
	if err != nil {
		r.log.Errorf("reconciler: list stuck orders: %v", err)
	}
	for _, o := range stuck {
		if _, err := r.machine.completeProject(ctx, o.ExternalSessionID); err != nil {
			r.log.Warnf("reconciler: resume %s: %v", o.ExternalSessionID, err)
		} else {
			r.log.Infof("reconciler: resumed order %s", o.ExternalSessionID)
		}
	}

	pending, err := r.orders.ListOrdersByStatus(ctx, model.OrderPendingPayment)
	if err != nil {
		r.log.Errorf("reconciler: list pending orders: %v", err)
		return
	}
	cutoff := r.now().Add(-r.PendingTTL)
	for _, o := range pending {
		if o.CreatedAt.Before(cutoff) {
			if _, err := r.machine.Expire(ctx, o.ExternalSessionID); err != nil {
				r.log.Warnf("reconciler: expire %s: %v", o.ExternalSessionID, err)
			}
		}
	}
}

// Run sweeps at the given interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
