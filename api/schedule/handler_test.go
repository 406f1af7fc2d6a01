package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
	"github.com/shotfleet/shotfleet/core/schedule"
)

var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *repo.MemoryStore {
	t.Helper()
	store := repo.NewMemoryStore()
	store.UpsertTechnician(model.Technician{
		ID:     "t1",
		Active: true,
		Hours: model.WorkHours{
			time.Monday: {Enabled: true, Start: 9 * 60, End: 17 * 60},
		},
	})
	return store
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func windowQuery() string {
	return "from=" + monday.Format(time.RFC3339) + "&to=" + monday.AddDate(0, 0, 1).Format(time.RFC3339)
}

func TestSlotsHandler_ReturnsFreeSlots(t *testing.T) {
	store := seededStore(t)
	booked := model.CommittedInterval{
		ID:           "iv1",
		TechnicianID: "t1",
		Start:        monday.Add(10 * time.Hour),
		End:          monday.Add(11 * time.Hour),
	}
	if err := store.CreateInterval(context.Background(), booked); err != nil {
		t.Fatalf("create interval: %v", err)
	}
	h := NewSlotsHandler(schedule.NewAvailability(store, store, 30))

	rr := get(h, "/api/schedule/slots?technician_id=t1&"+windowQuery())
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var slots []model.TimeSlot
	if err := json.Unmarshal(rr.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(slots) != 15 {
		t.Fatalf("len(slots) = %d, want 15", len(slots))
	}
	blocked := 0
	for _, s := range slots {
		overlaps := s.Start.Before(monday.Add(11*time.Hour)) && monday.Add(10*time.Hour).Before(s.End)
		if overlaps == s.Available {
			t.Errorf("slot %v: available = %v despite overlap = %v", s, s.Available, overlaps)
		}
		if !s.Available {
			blocked++
		}
	}
	if blocked != 3 {
		t.Errorf("blocked slots = %d, want 3", blocked)
	}
}

func TestSlotsHandler_Validation(t *testing.T) {
	store := seededStore(t)
	h := NewSlotsHandler(schedule.NewAvailability(store, store, 30))

	cases := []struct {
		name   string
		target string
		want   int
	}{
		{"bad from", "/api/schedule/slots?technician_id=t1&from=nope&to=" + monday.Format(time.RFC3339), http.StatusBadRequest},
		{"bad duration", "/api/schedule/slots?technician_id=t1&duration_minutes=abc&" + windowQuery(), http.StatusBadRequest},
		{"zero duration", "/api/schedule/slots?technician_id=t1&duration_minutes=0&" + windowQuery(), http.StatusBadRequest},
		{"unknown technician", "/api/schedule/slots?technician_id=ghost&" + windowQuery(), http.StatusNotFound},
	}
	for _, c := range cases {
		if rr := get(h, c.target); rr.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.name, rr.Code, c.want)
		}
	}

	req := httptest.NewRequest("POST", "/api/schedule/slots", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST: status = %d, want 405", rr.Code)
	}
}

func TestLayoutHandler_Placements(t *testing.T) {
	store := seededStore(t)
	resolver := schedule.NewResolver(store)
	ctx := context.Background()
	if _, err := resolver.Reserve(ctx, "t1", "job-a", monday.Add(9*time.Hour), monday.Add(11*time.Hour)); err != nil {
		t.Fatalf("reserve a: %v", err)
	}
	if _, err := resolver.Reserve(ctx, "t1", "job-b", monday.Add(11*time.Hour), monday.Add(12*time.Hour)); err != nil {
		t.Fatalf("reserve b: %v", err)
	}
	h := NewLayoutHandler(resolver)

	rr := get(h, "/api/schedule/layout?technician_id=t1&"+windowQuery())
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var placements []schedule.EventPlacement
	if err := json.Unmarshal(rr.Body.Bytes(), &placements); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(placements) != 2 {
		t.Fatalf("len(placements) = %d, want 2", len(placements))
	}
	for _, p := range placements {
		if p.Placement.ColStart < 1 || p.Placement.ColSpan < 1 {
			t.Errorf("placement %+v has invalid columns", p)
		}
	}
}

func TestLayoutHandler_EmptyCalendar(t *testing.T) {
	store := seededStore(t)
	h := NewLayoutHandler(schedule.NewResolver(store))

	rr := get(h, "/api/schedule/layout?technician_id=t1&"+windowQuery())
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestLayoutHandler_RequiresTechnician(t *testing.T) {
	store := seededStore(t)
	h := NewLayoutHandler(schedule.NewResolver(store))

	if rr := get(h, "/api/schedule/layout?"+windowQuery()); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
