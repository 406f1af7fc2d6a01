// Package schedule exposes availability slots and calendar layout over
// HTTP for booking and calendar UIs.
package schedule

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/schedule"
)

// NewSlotsHandler returns the handler for GET /api/schedule/slots.
// Query parameters: technician_id, from, to (RFC 3339), duration_minutes.
func NewSlotsHandler(avail *schedule.Availability) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		technicianID := r.URL.Query().Get("technician_id")
		from, to, ok := parseWindow(w, r)
		if !ok {
			return
		}
		duration := 60
		if s := r.URL.Query().Get("duration_minutes"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
				return
			}
			duration = v
		}
		seq, err := avail.ComputeSlots(r.Context(), technicianID, from, to, duration)
		if err != nil {
			writeError(w, err)
			return
		}
		slots := []model.TimeSlot{}
		for slot := range seq {
			slots = append(slots, slot)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(slots); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewLayoutHandler returns the handler for GET /api/schedule/layout. It
// serves the technician's committed intervals with their column
// placements for the calendar view.
func NewLayoutHandler(resolver *schedule.Resolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		technicianID := r.URL.Query().Get("technician_id")
		if technicianID == "" {
			http.Error(w, "technician_id is required", http.StatusBadRequest)
			return
		}
		from, to, ok := parseWindow(w, r)
		if !ok {
			return
		}
		placements, err := resolver.Layout(r.Context(), technicianID, from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		if placements == nil {
			placements = []schedule.EventPlacement{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(placements); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
