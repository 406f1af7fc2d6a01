package fulfillment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
	"github.com/shotfleet/shotfleet/infra/logger"
)

// failingProjects rejects CreateProject until allowed, simulating a
// project store outage between payment claim and project creation.
type failingProjects struct {
	*repo.MemoryStore
	allow bool
}

func (f *failingProjects) CreateProject(ctx context.Context, p model.Project) error {
	if !f.allow {
		return errors.New("project store unavailable")
	}
	return f.MemoryStore.CreateProject(ctx, p)
}

func TestSweep_ResumesStuckFulfillment(t *testing.T) {
	store := repo.NewMemoryStore()
	projects := &failingProjects{MemoryStore: store}
	m, err := NewMachine(store, projects, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	seedOrder(t, store, "sess-1")

	// Payment lands but project creation fails; order stays claimed.
	if _, err := m.OnPaymentConfirmed(context.Background(), "sess-1"); err == nil {
		t.Fatal("expected project creation failure")
	}
	st, err := m.GetStatus(context.Background(), "sess-1")
	if err != nil || st.Status != model.OrderPaymentCompleted {
		t.Fatalf("status = %+v (%v), want PAYMENT_COMPLETED", st, err)
	}

	// Store recovers; one sweep finishes the job.
	projects.allow = true
	r := NewReconciler(m, store, logger.NopLogger{}, time.Hour)
	r.Sweep(context.Background())

	st, err = m.GetStatus(context.Background(), "sess-1")
	if err != nil || st.Status != model.OrderProjectCreated || st.ProjectID == "" {
		t.Fatalf("status after sweep = %+v (%v), want PROJECT_CREATED", st, err)
	}
}

func TestSweep_ExpiresStalePendingOrders(t *testing.T) {
	store := repo.NewMemoryStore()
	m, err := NewMachine(store, store, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	seedOrder(t, store, "stale")
	seedOrder(t, store, "fresh")

	r := NewReconciler(m, store, logger.NopLogger{}, 30*time.Minute)
	// Run the sweep as if an hour passed since "stale" was created while
	// "fresh" is only a minute old.
	fresh, err := store.FindOrderBySession(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("find fresh: %v", err)
	}
	backdated := model.Order{
		ID:                "ord-backdated",
		OrganizationID:    "org-1",
		Status:            model.OrderPendingPayment,
		ExternalSessionID: "backdated",
		ScheduledTime:     checkout,
		DurationMinutes:   60,
		CreatedAt:         fresh.CreatedAt.Add(-time.Hour),
	}
	if err := store.CreateOrder(context.Background(), backdated); err != nil {
		t.Fatalf("seed backdated: %v", err)
	}
	r.now = func() time.Time { return fresh.CreatedAt.Add(time.Minute) }

	r.Sweep(context.Background())

	st, _ := m.GetStatus(context.Background(), "backdated")
	if st.Status != model.OrderExpired {
		t.Errorf("backdated order = %v, want EXPIRED", st.Status)
	}
	st, _ = m.GetStatus(context.Background(), "fresh")
	if st.Status != model.OrderPendingPayment {
		t.Errorf("fresh order = %v, want PENDING_PAYMENT", st.Status)
	}
	st, _ = m.GetStatus(context.Background(), "stale")
	if st.Status != model.OrderPendingPayment {
		t.Errorf("recent order = %v, want PENDING_PAYMENT", st.Status)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := repo.NewMemoryStore()
	m, err := NewMachine(store, store, logger.NopLogger{}, nil, nil)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	r := NewReconciler(m, store, logger.NopLogger{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
