package model

import "time"

// DayHours describes a technician's working window for one day of week.
// Start and End are minutes since midnight, half-open: a technician
// working 09:00-17:00 has Start=540, End=1020.
type DayHours struct {
	Enabled bool `json:"enabled"`
	Start   int  `json:"start"`
	End     int  `json:"end"`
}

// WorkHours maps a day of week to its working window.
type WorkHours map[time.Weekday]DayHours

// Reliability aggregates a technician's delivery track record.
type Reliability struct {
	OnTimeRate     float64 `json:"on_time_rate"` // between 0 and 1
	TotalJobs      int     `json:"total_jobs"`
	LateDeliveries int     `json:"late_deliveries"`
}

// Technician represents a field worker available for job assignment.
// Availability is always derived from work hours and the committed
// calendar, never stored on the profile.
type Technician struct {
	ID           string
	Name         string
	HomeLocation LatLng
	Hours        WorkHours

	// Skills maps a media-type tag (e.g. "AERIAL") to a proficiency
	// level. Zero or missing means the technician does not offer it.
	Skills map[string]int

	Reliability Reliability

	// PreferredBy holds organization IDs that granted this technician a
	// preferred-vendor ranking boost.
	PreferredBy map[string]bool

	Active bool
}

// WorksOn returns the working window for the given weekday.
func (t Technician) WorksOn(day time.Weekday) (DayHours, bool) {
	h, ok := t.Hours[day]
	if !ok || !h.Enabled {
		return DayHours{}, false
	}
	return h, true
}

// HasSkill reports whether the technician offers the skill with positive
// proficiency.
func (t Technician) HasSkill(tag string) bool {
	return t.Skills[tag] > 0
}

// PreferredByOrg reports whether org marked this technician as preferred.
func (t Technician) PreferredByOrg(orgID string) bool {
	return t.PreferredBy[orgID]
}
