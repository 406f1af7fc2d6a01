// Package technicians exposes the live technician status snapshots for
// org dashboards.
package technicians

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shotfleet/shotfleet/core/schedule"
	"github.com/shotfleet/shotfleet/core/techstatus"
)

// NewStatusHandler returns the handler for GET /api/technicians/status.
// When an availability computer is given, each snapshot is enriched with
// the technician's next free hour-long slot over the coming week.
func NewStatusHandler(store techstatus.Store, avail *schedule.Availability) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := techstatus.Filter{
			OrgID:  r.URL.Query().Get("org_id"),
			Status: r.URL.Query().Get("status"),
		}
		entries := store.List(f)
		if avail != nil {
			now := time.Now().UTC()
			for i := range entries {
				slots, err := avail.FreeSlots(r.Context(), entries[i].TechnicianID, now, now.AddDate(0, 0, 7), 60)
				if err != nil || len(slots) == 0 {
					continue
				}
				start := slots[0].Start
				entries[i].NextFreeSlot = &start
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
