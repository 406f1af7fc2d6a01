package technicians

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
	"github.com/shotfleet/shotfleet/core/schedule"
	"github.com/shotfleet/shotfleet/core/techstatus"
)

func TestStatusHandler_Basic(t *testing.T) {
	store := techstatus.NewMemoryStore()
	store.Set(techstatus.Snapshot{TechnicianID: "t1", OrgID: "org-1", CurrentStatus: "idle"})
	h := NewStatusHandler(store, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/technicians/status", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []techstatus.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].TechnicianID != "t1" {
		t.Fatalf("unexpected output %#v", out)
	}
}

func TestStatusHandler_Filter(t *testing.T) {
	store := techstatus.NewMemoryStore()
	store.Set(techstatus.Snapshot{TechnicianID: "t1", OrgID: "org-1"})
	store.Set(techstatus.Snapshot{TechnicianID: "t2", OrgID: "org-2"})
	h := NewStatusHandler(store, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/technicians/status?org_id=org-2", nil)
	h.ServeHTTP(rr, req)
	var out []techstatus.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].TechnicianID != "t2" {
		t.Fatalf("unexpected filter result %#v", out)
	}
}

func TestStatusHandler_Empty(t *testing.T) {
	store := techstatus.NewMemoryStore()
	h := NewStatusHandler(store, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/technicians/status", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if rr.Body.String() != "[]\n" {
		t.Fatalf("expected empty array got %s", rr.Body.String())
	}
}

func TestStatusHandler_NextFreeSlot(t *testing.T) {
	repos := repo.NewMemoryStore()
	repos.UpsertTechnician(model.Technician{
		ID:     "t1",
		Active: true,
		Hours: func() model.WorkHours {
			h := model.WorkHours{}
			for d := time.Sunday; d <= time.Saturday; d++ {
				h[d] = model.DayHours{Enabled: true, Start: 0, End: 24 * 60}
			}
			return h
		}(),
	})
	avail := schedule.NewAvailability(repos, repos, 30)

	store := techstatus.NewMemoryStore()
	store.Set(techstatus.Snapshot{TechnicianID: "t1"})
	store.Set(techstatus.Snapshot{TechnicianID: "ghost"})

	h := NewStatusHandler(store, avail)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/technicians/status", nil)
	h.ServeHTTP(rr, req)
	var out []techstatus.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(out))
	}
	// Sorted, so "ghost" first: unknown to the repos, no enrichment.
	if out[0].NextFreeSlot != nil {
		t.Errorf("ghost should have no free slot")
	}
	if out[1].NextFreeSlot == nil {
		t.Errorf("t1 should have a next free slot")
	}
}
