package model

import "time"

// ProjectStatus tracks a job through its production lifecycle.
type ProjectStatus int

const (
	ProjectPending ProjectStatus = iota
	ProjectBooked
	ProjectShooting
	ProjectEditing
	ProjectDelivered
	ProjectCancelled
)

// String returns a human-readable representation of the project status.
func (s ProjectStatus) String() string {
	switch s {
	case ProjectPending:
		return "PENDING"
	case ProjectBooked:
		return "BOOKED"
	case ProjectShooting:
		return "SHOOTING"
	case ProjectEditing:
		return "EDITING"
	case ProjectDelivered:
		return "DELIVERED"
	case ProjectCancelled:
		return "CANCELLED"
	default:
		return "unknown"
	}
}

// Project represents a scheduled media-production job at a property.
// Projects are never deleted, only status-transitioned.
type Project struct {
	ID              string
	OrganizationID  string
	Status          ProjectStatus
	ScheduledTime   time.Time
	DurationMinutes int
	Location        LatLng
	Address         string
	RequiredSkills  []string

	// AssignedTechnicianID is owned by dispatch once set. Empty means
	// the job is still unstaffed.
	AssignedTechnicianID string

	CreatedAt time.Time
}

// Window returns the half-open interval occupied by the job.
func (p Project) Window() (time.Time, time.Time) {
	return p.ScheduledTime, p.ScheduledTime.Add(time.Duration(p.DurationMinutes) * time.Minute)
}

// Validate checks the fields dispatch depends on.
func (p Project) Validate() error {
	if p.DurationMinutes <= 0 {
		return ErrInvalidArgument
	}
	if !p.Location.Valid() {
		return ErrInvalidArgument
	}
	return nil
}
