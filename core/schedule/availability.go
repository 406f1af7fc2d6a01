package schedule

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
)

// DefaultSlotMinutes is the candidate-slot granularity used when the
// computer is built with a non-positive step.
const DefaultSlotMinutes = 30

// Availability derives free time slots from a technician's working hours
// and committed calendar. Slots are never stored; every call recomputes
// them from current state.
type Availability struct {
	technicians repo.TechnicianRepository
	intervals   repo.IntervalRepository
	slotStep    time.Duration
}

// NewAvailability creates a slot computer reading from the given
// repositories. slotMinutes <= 0 falls back to DefaultSlotMinutes.
func NewAvailability(technicians repo.TechnicianRepository, intervals repo.IntervalRepository, slotMinutes int) *Availability {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	return &Availability{
		technicians: technicians,
		intervals:   intervals,
		slotStep:    time.Duration(slotMinutes) * time.Minute,
	}
}

// ComputeSlots returns a finite, restartable, chronologically ordered
// sequence of candidate slots of the requested duration between from and
// to. A slot is unavailable when it intersects any committed interval of
// the technician. Calendar state is read once up front; iterating the
// returned sequence performs no further I/O and has no side effects, so
// callers may abandon it at any point.
func (a *Availability) ComputeSlots(ctx context.Context, technicianID string, from, to time.Time, durationMinutes int) (iter.Seq[model.TimeSlot], error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("slot duration must be positive: %w", model.ErrInvalidArgument)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("empty date range: %w", model.ErrInvalidArgument)
	}
	tech, err := a.technicians.FindTechnician(ctx, technicianID)
	if err != nil {
		return nil, fmt.Errorf("technician %s: %w", technicianID, err)
	}
	committed, err := a.intervals.IntervalsFor(ctx, technicianID, from, to)
	if err != nil {
		return nil, fmt.Errorf("intervals for %s: %w", technicianID, err)
	}

	duration := time.Duration(durationMinutes) * time.Minute
	step := a.slotStep
	return func(yield func(model.TimeSlot) bool) {
		for day := startOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
			hours, ok := tech.WorksOn(day.Weekday())
			if !ok {
				continue
			}
			windowStart := day.Add(time.Duration(hours.Start) * time.Minute)
			windowEnd := day.Add(time.Duration(hours.End) * time.Minute)
			for s := windowStart; !s.Add(duration).After(windowEnd); s = s.Add(step) {
				e := s.Add(duration)
				if s.Before(from) || e.After(to) {
					continue
				}
				slot := model.TimeSlot{Start: s, End: e, Available: !intersectsAny(s, e, committed)}
				if !yield(slot) {
					return
				}
			}
		}
	}, nil
}

// FreeSlots collects only the available slots from ComputeSlots.
func (a *Availability) FreeSlots(ctx context.Context, technicianID string, from, to time.Time, durationMinutes int) ([]model.TimeSlot, error) {
	seq, err := a.ComputeSlots(ctx, technicianID, from, to, durationMinutes)
	if err != nil {
		return nil, err
	}
	var out []model.TimeSlot
	for slot := range seq {
		if slot.Available {
			out = append(out, slot)
		}
	}
	return out, nil
}

func intersectsAny(start, end time.Time, committed []model.CommittedInterval) bool {
	slot := Span{Start: start, End: end}
	for _, iv := range committed {
		if Overlaps(slot, Span{Start: iv.Start, End: iv.End}) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
