package model

import (
	"fmt"
	"time"
)

// IntervalSource distinguishes internally created reservations from rows
// mirrored out of an external synced calendar. Both block scheduling the
// same way.
type IntervalSource int

const (
	SourceInternal IntervalSource = iota
	SourceExternal
)

// String returns a human-readable representation of the interval source.
func (s IntervalSource) String() string {
	switch s {
	case SourceInternal:
		return "internal"
	case SourceExternal:
		return "external"
	default:
		return "unknown"
	}
}

// CommittedInterval is a reserved block of a technician's calendar.
// Intervals are half-open: Start is included, End is not.
type CommittedInterval struct {
	ID           string
	TechnicianID string
	Start        time.Time
	End          time.Time
	Source       IntervalSource

	// JobID is a weak back-reference used for lookups only. External
	// calendar rows leave it empty.
	JobID string
}

// Validate rejects degenerate intervals.
func (c CommittedInterval) Validate() error {
	if !c.Start.Before(c.End) {
		return fmt.Errorf("interval start must precede end: %w", ErrInvalidArgument)
	}
	return nil
}

// TimeSlot is a derived availability window. It is recomputed per query
// and never persisted.
type TimeSlot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}
