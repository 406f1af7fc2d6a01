// Package repo defines the narrow persistence interfaces the engine
// depends on, plus in-memory implementations used by tests and as the
// default wiring. The storage engine behind them is interchangeable;
// infra/storage provides a SQLite implementation.
package repo

import (
	"context"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

// ProjectRepository persists jobs.
type ProjectRepository interface {
	CreateProject(ctx context.Context, p model.Project) error
	FindProject(ctx context.Context, id string) (model.Project, error)
	FindProjectsByOrg(ctx context.Context, orgID string) ([]model.Project, error)
	UpdateProjectStatus(ctx context.Context, id string, status model.ProjectStatus) error
	AssignTechnician(ctx context.Context, projectID, technicianID string) error
}

// TechnicianRepository reads technician profiles.
type TechnicianRepository interface {
	FindTechnician(ctx context.Context, id string) (model.Technician, error)
	ListTechnicians(ctx context.Context, orgID string) ([]model.Technician, error)
}

// IntervalRepository persists committed calendar intervals. Implementers
// must support querying by technician and time window; the conflict
// resolver serialises writes per technician on top of this interface.
type IntervalRepository interface {
	CreateInterval(ctx context.Context, iv model.CommittedInterval) error
	DeleteInterval(ctx context.Context, id string) error
	// IntervalsFor returns every committed interval for the technician
	// overlapping [from, to), ordered by start time.
	IntervalsFor(ctx context.Context, technicianID string, from, to time.Time) ([]model.CommittedInterval, error)
}

// OrderRepository persists booking orders. CompareAndSwapStatus is the
// primitive the fulfillment machine builds its idempotency on: it must
// atomically move the order identified by sessionID from expected to
// next, reporting false when the order was no longer in expected.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o model.Order) error
	FindOrderBySession(ctx context.Context, sessionID string) (model.Order, error)
	ListOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	CompareAndSwapStatus(ctx context.Context, sessionID string, expected, next model.OrderStatus) (bool, error)
	// SetResultingProject records the created project and moves the order
	// to PROJECT_CREATED. Must be a no-op returning false if the order
	// already left PAYMENT_COMPLETED.
	SetResultingProject(ctx context.Context, sessionID, projectID string) (bool, error)
}
