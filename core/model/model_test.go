package model

import (
	"math"
	"testing"
	"time"
)

func TestLatLngValid(t *testing.T) {
	cases := []struct {
		name string
		l    LatLng
		want bool
	}{
		{"paris", LatLng{48.8566, 2.3522}, true},
		{"zero is unresolved", LatLng{}, false},
		{"lat out of range", LatLng{91, 0}, false},
		{"lng out of range", LatLng{0, 181}, false},
		{"south pole", LatLng{-90, 0}, true},
	}
	for _, c := range cases {
		if got := c.l.Valid(); got != c.want {
			t.Errorf("%s: Valid() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDistanceKm(t *testing.T) {
	paris := LatLng{48.8566, 2.3522}
	london := LatLng{51.5074, -0.1278}
	d := paris.DistanceKm(london)
	// Great-circle Paris-London is about 344 km.
	if math.Abs(d-344) > 5 {
		t.Errorf("Paris-London = %.1f km, want ~344", d)
	}
	if paris.DistanceKm(paris) != 0 {
		t.Errorf("distance to self must be zero")
	}
	if math.Abs(paris.DistanceKm(london)-london.DistanceKm(paris)) > 1e-9 {
		t.Errorf("distance not symmetric")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderPendingPayment:   {OrderPaymentCompleted, OrderExpired, OrderCancelled},
		OrderPaymentCompleted: {OrderProjectCreated},
	}
	all := []OrderStatus{OrderPendingPayment, OrderPaymentCompleted, OrderProjectCreated, OrderExpired, OrderCancelled}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, n := range allowed[from] {
				if n == to {
					want = true
				}
			}
			if got := from.CanTransition(to); got != want {
				t.Errorf("CanTransition(%v -> %v) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for s, want := range map[OrderStatus]bool{
		OrderPendingPayment:   false,
		OrderPaymentCompleted: false,
		OrderProjectCreated:   true,
		OrderExpired:          true,
		OrderCancelled:        true,
	} {
		if got := s.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", s, got, want)
		}
	}
}

func TestProjectWindow(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	p := Project{ScheduledTime: at, DurationMinutes: 90}
	start, end := p.Window()
	if !start.Equal(at) || !end.Equal(at.Add(90*time.Minute)) {
		t.Errorf("Window() = %v %v", start, end)
	}
}

func TestProjectValidate(t *testing.T) {
	valid := Project{DurationMinutes: 60, Location: LatLng{48.85, 2.35}}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid project rejected: %v", err)
	}
	if err := (Project{DurationMinutes: 0, Location: LatLng{48.85, 2.35}}).Validate(); err == nil {
		t.Error("zero duration accepted")
	}
	if err := (Project{DurationMinutes: 60}).Validate(); err == nil {
		t.Error("unresolved location accepted")
	}
}

func TestTechnicianWorksOn(t *testing.T) {
	tech := Technician{Hours: WorkHours{
		time.Monday:  {Enabled: true, Start: 540, End: 1020},
		time.Tuesday: {Enabled: false, Start: 540, End: 1020},
	}}
	if _, ok := tech.WorksOn(time.Monday); !ok {
		t.Error("Monday should be a work day")
	}
	if _, ok := tech.WorksOn(time.Tuesday); ok {
		t.Error("disabled day reported as working")
	}
	if _, ok := tech.WorksOn(time.Sunday); ok {
		t.Error("unset day reported as working")
	}
}

func TestCommittedIntervalValidate(t *testing.T) {
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	ok := CommittedInterval{Start: at, End: at.Add(time.Hour)}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid interval rejected: %v", err)
	}
	empty := CommittedInterval{Start: at, End: at}
	if err := empty.Validate(); err == nil {
		t.Error("empty interval accepted")
	}
}
