package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

var shootAt = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func TestMemoryStore_ProjectLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	p := model.Project{ID: "p1", OrganizationID: "org-1", Status: model.ProjectPending}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.AssignTechnician(ctx, "p1", "t1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := s.FindProject(ctx, "p1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.AssignedTechnicianID != "t1" || got.Status != model.ProjectBooked {
		t.Errorf("project = %+v, want booked by t1", got)
	}
	if err := s.UpdateProjectStatus(ctx, "p1", model.ProjectDelivered); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = s.FindProject(ctx, "p1")
	if got.Status != model.ProjectDelivered {
		t.Errorf("status = %v, want DELIVERED", got.Status)
	}
	if _, err := s.FindProject(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_IntervalsForWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	mk := func(id string, startH, endH int) model.CommittedInterval {
		return model.CommittedInterval{
			ID: id, TechnicianID: "t1",
			Start: shootAt.Add(time.Duration(startH) * time.Hour),
			End:   shootAt.Add(time.Duration(endH) * time.Hour),
		}
	}
	for _, iv := range []model.CommittedInterval{mk("b", 4, 5), mk("a", 0, 1)} {
		if err := s.CreateInterval(ctx, iv); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.IntervalsFor(ctx, "t1", shootAt, shootAt.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("intervals: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("intervals = %v, want [a b] ordered by start", got)
	}
	// Touching window edge excluded.
	got, _ = s.IntervalsFor(ctx, "t1", shootAt.Add(time.Hour), shootAt.Add(4*time.Hour))
	if len(got) != 0 {
		t.Errorf("touching intervals included: %v", got)
	}
}

func TestMemoryStore_DuplicateSessionRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	o := model.Order{ID: "ord-1", ExternalSessionID: "sess-1", Status: model.OrderPendingPayment}
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateOrder(ctx, o); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("duplicate session err = %v, want ErrInvalidArgument", err)
	}
}

func TestMemoryStore_CASUnderContention(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.CreateOrder(ctx, model.Order{ID: "ord-1", ExternalSessionID: "sess-1", Status: model.OrderPendingPayment}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	wins := make([]bool, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.CompareAndSwapStatus(ctx, "sess-1", model.OrderPendingPayment, model.OrderPaymentCompleted)
			if err != nil {
				t.Errorf("cas: %v", err)
			}
			wins[i] = ok
		}(i)
	}
	wg.Wait()

	won := 0
	for _, w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Errorf("winners = %d, want exactly 1", won)
	}
}

func TestMemoryStore_SetResultingProjectRequiresClaim(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.CreateOrder(ctx, model.Order{ID: "ord-1", ExternalSessionID: "sess-1", Status: model.OrderPendingPayment}); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, err := s.SetResultingProject(ctx, "sess-1", "p1")
	if err != nil || ok {
		t.Errorf("finalize before claim = (%v, %v), want no-op", ok, err)
	}
	if _, err := s.CompareAndSwapStatus(ctx, "sess-1", model.OrderPendingPayment, model.OrderPaymentCompleted); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ok, err = s.SetResultingProject(ctx, "sess-1", "p1")
	if err != nil || !ok {
		t.Fatalf("finalize = (%v, %v), want success", ok, err)
	}
	got, _ := s.FindOrderBySession(ctx, "sess-1")
	if got.Status != model.OrderProjectCreated || got.ResultingProjectID != "p1" {
		t.Errorf("order = %+v", got)
	}
}
