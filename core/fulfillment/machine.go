// Package fulfillment reconciles asynchronous payment confirmations with
// job creation. The state machine is a pure function of (order status,
// event) layered on a compare-and-swap order repository, which makes the
// webhook path safe against at-least-once delivery.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shotfleet/shotfleet/core/events"
	"github.com/shotfleet/shotfleet/core/logger"
	"github.com/shotfleet/shotfleet/core/metrics"
	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
	"github.com/shotfleet/shotfleet/internal/eventbus"
)

// Status is the pollable view of an order exposed to clients.
type Status struct {
	Status    model.OrderStatus `json:"status"`
	ProjectID string            `json:"project_id,omitempty"`
}

// Machine drives orders through PENDING_PAYMENT -> PAYMENT_COMPLETED ->
// PROJECT_CREATED, with EXPIRED and CANCELLED as the failure terminals.
type Machine struct {
	orders   repo.OrderRepository
	projects repo.ProjectRepository
	log      logger.Logger
	bus      eventbus.EventBus
	sink     metrics.MetricsSink
	now      func() time.Time
}

// NewMachine creates a fulfillment machine. bus and sink may be nil.
func NewMachine(orders repo.OrderRepository, projects repo.ProjectRepository, log logger.Logger, bus eventbus.EventBus, sink metrics.MetricsSink) (*Machine, error) {
	if orders == nil || projects == nil || log == nil {
		return nil, fmt.Errorf("fulfillment: nil parameter provided to NewMachine")
	}
	return &Machine{
		orders:   orders,
		projects: projects,
		log:      log,
		bus:      bus,
		sink:     sink,
		now:      time.Now,
	}, nil
}

// projectIDFor derives the project identity from the payment session so
// that every retry of the creation step converges on the same row.
func projectIDFor(sessionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("order/"+sessionID)).String()
}

// OnPaymentConfirmed handles a payment_confirmed webhook for the
// session. It is idempotent: replays and concurrent duplicate deliveries
// settle on the same project and never create a second one. A replay
// against an already fulfilled order is a no-op success.
func (m *Machine) OnPaymentConfirmed(ctx context.Context, sessionID string) (Status, error) {
	order, err := m.orders.FindOrderBySession(ctx, sessionID)
	if err != nil {
		return Status{}, fmt.Errorf("order %s: %w", sessionID, err)
	}

	switch order.Status {
	case model.OrderProjectCreated:
		// Duplicate webhook delivery.
		return Status{Status: order.Status, ProjectID: order.ResultingProjectID}, nil
	case model.OrderExpired, model.OrderCancelled:
		m.log.Warnf("payment confirmed for terminal order %s (%s)", sessionID, order.Status)
		return Status{Status: order.Status}, nil
	}

	claimed, err := m.orders.CompareAndSwapStatus(ctx, sessionID, model.OrderPendingPayment, model.OrderPaymentCompleted)
	if err != nil {
		return Status{}, fmt.Errorf("claim order %s: %w", sessionID, err)
	}
	if claimed {
		m.record(sessionID, model.OrderPendingPayment, model.OrderPaymentCompleted, "")
	} else {
		// Lost the claim to a concurrent delivery. Re-read and join the
		// creation step; it converges on one project either way.
		order, err = m.orders.FindOrderBySession(ctx, sessionID)
		if err != nil {
			return Status{}, err
		}
		if order.Status == model.OrderProjectCreated {
			return Status{Status: order.Status, ProjectID: order.ResultingProjectID}, nil
		}
		if order.Status != model.OrderPaymentCompleted {
			return Status{Status: order.Status}, nil
		}
	}
	return m.completeProject(ctx, sessionID)
}

// completeProject creates the project for a PAYMENT_COMPLETED order and
// marks the order fulfilled. Creation failure leaves the order in
// PAYMENT_COMPLETED for the reconciler to resume; the session-derived
// project ID makes the retry duplicate-free.
func (m *Machine) completeProject(ctx context.Context, sessionID string) (Status, error) {
	order, err := m.orders.FindOrderBySession(ctx, sessionID)
	if err != nil {
		return Status{}, err
	}
	if order.Status == model.OrderProjectCreated {
		return Status{Status: order.Status, ProjectID: order.ResultingProjectID}, nil
	}
	if order.Status != model.OrderPaymentCompleted {
		return Status{Status: order.Status}, nil
	}

	projectID := projectIDFor(sessionID)
	project := model.Project{
		ID:              projectID,
		OrganizationID:  order.OrganizationID,
		Status:          model.ProjectPending,
		ScheduledTime:   order.ScheduledTime,
		DurationMinutes: order.DurationMinutes,
		Location:        order.Location,
		Address:         order.Address,
		RequiredSkills:  order.RequiredSkills,
		CreatedAt:       m.now(),
	}
	if err := m.projects.CreateProject(ctx, project); err != nil {
		return Status{Status: model.OrderPaymentCompleted}, fmt.Errorf("create project for %s: %w", sessionID, err)
	}

	if _, err := m.orders.SetResultingProject(ctx, sessionID, projectID); err != nil {
		return Status{Status: model.OrderPaymentCompleted}, fmt.Errorf("finalize order %s: %w", sessionID, err)
	}
	m.record(sessionID, model.OrderPaymentCompleted, model.OrderProjectCreated, projectID)
	if m.bus != nil {
		m.bus.Publish(events.JobCreatedEvent{SessionID: sessionID, ProjectID: projectID, OrgID: order.OrganizationID})
	}
	m.log.Infof("order %s fulfilled, project %s", sessionID, projectID)
	return Status{Status: model.OrderProjectCreated, ProjectID: projectID}, nil
}

// GetStatus returns the pollable order view. Read-only, safe at any
// call frequency.
func (m *Machine) GetStatus(ctx context.Context, sessionID string) (Status, error) {
	order, err := m.orders.FindOrderBySession(ctx, sessionID)
	if err != nil {
		return Status{}, fmt.Errorf("order %s: %w", sessionID, err)
	}
	return Status{Status: order.Status, ProjectID: order.ResultingProjectID}, nil
}

// Cancel moves a pending order to CANCELLED. Cancelling an order that
// already left PENDING_PAYMENT is a no-op returning the current state.
func (m *Machine) Cancel(ctx context.Context, sessionID string) (Status, error) {
	swapped, err := m.orders.CompareAndSwapStatus(ctx, sessionID, model.OrderPendingPayment, model.OrderCancelled)
	if err != nil {
		return Status{}, err
	}
	if swapped {
		m.record(sessionID, model.OrderPendingPayment, model.OrderCancelled, "")
	}
	return m.GetStatus(ctx, sessionID)
}

// Expire moves a pending order to EXPIRED. Used by the reconciler's TTL
// sweep.
func (m *Machine) Expire(ctx context.Context, sessionID string) (Status, error) {
	swapped, err := m.orders.CompareAndSwapStatus(ctx, sessionID, model.OrderPendingPayment, model.OrderExpired)
	if err != nil {
		return Status{}, err
	}
	if swapped {
		m.record(sessionID, model.OrderPendingPayment, model.OrderExpired, "")
	}
	return m.GetStatus(ctx, sessionID)
}

func (m *Machine) record(sessionID string, from, to model.OrderStatus, projectID string) {
	if m.sink == nil {
		return
	}
	if fr, ok := m.sink.(metrics.FulfillmentRecorder); ok {
		if err := fr.RecordFulfillment(metrics.FulfillmentEvent{
			SessionID: sessionID,
			From:      from,
			To:        to,
			ProjectID: projectID,
			Time:      m.now(),
		}); err != nil {
			m.log.Errorf("fulfillment metrics error: %v", err)
		}
	}
}
