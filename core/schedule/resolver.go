package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/repo"
)

// Resolver detects scheduling conflicts and reserves technician time.
// Reserve is the one concurrency-critical path in the engine: the
// check-then-create sequence is serialised per technician so that two
// simultaneous bookings for overlapping intervals cannot both succeed.
type Resolver struct {
	intervals repo.IntervalRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewResolver creates a resolver over the given interval repository.
func NewResolver(intervals repo.IntervalRepository) *Resolver {
	return &Resolver{intervals: intervals, locks: make(map[string]*sync.Mutex)}
}

// technicianLock returns the mutex guarding one technician's calendar.
func (r *Resolver) technicianLock(technicianID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[technicianID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[technicianID] = l
	}
	return l
}

// HasConflict reports whether any committed interval for the technician
// overlaps the proposed half-open window.
func (r *Resolver) HasConflict(ctx context.Context, technicianID string, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, fmt.Errorf("proposed interval start must precede end: %w", model.ErrInvalidArgument)
	}
	existing, err := r.intervals.IntervalsFor(ctx, technicianID, start, end)
	if err != nil {
		return false, err
	}
	proposed := Span{Start: start, End: end}
	for _, iv := range existing {
		if Overlaps(proposed, Span{Start: iv.Start, End: iv.End}) {
			return true, nil
		}
	}
	return false, nil
}

// Reserve atomically checks for conflicts and commits the interval.
// Exactly one of two concurrent overlapping reservations for the same
// technician succeeds; the loser gets ErrConflict.
func (r *Resolver) Reserve(ctx context.Context, technicianID, jobID string, start, end time.Time) (model.CommittedInterval, error) {
	if !start.Before(end) {
		return model.CommittedInterval{}, fmt.Errorf("reserve %s: %w", technicianID, model.ErrInvalidArgument)
	}
	lock := r.technicianLock(technicianID)
	lock.Lock()
	defer lock.Unlock()

	conflict, err := r.HasConflict(ctx, technicianID, start, end)
	if err != nil {
		return model.CommittedInterval{}, err
	}
	if conflict {
		return model.CommittedInterval{}, fmt.Errorf("technician %s already booked in window: %w", technicianID, model.ErrConflict)
	}
	iv := model.CommittedInterval{
		ID:           uuid.NewString(),
		TechnicianID: technicianID,
		Start:        start,
		End:          end,
		Source:       model.SourceInternal,
		JobID:        jobID,
	}
	if err := r.intervals.CreateInterval(ctx, iv); err != nil {
		return model.CommittedInterval{}, fmt.Errorf("commit interval: %w", err)
	}
	return iv, nil
}

// Release removes a committed interval when a job is cancelled or
// reassigned.
func (r *Resolver) Release(ctx context.Context, intervalID string) error {
	return r.intervals.DeleteInterval(ctx, intervalID)
}

// EventPlacement pairs a committed interval with its column placement
// for rendering.
type EventPlacement struct {
	Interval  model.CommittedInterval `json:"interval"`
	Placement Placement               `json:"placement"`
}

// Layout loads the technician's committed intervals in the window and
// assigns render columns so concurrent events never visually overlap.
// The interval set is the same one conflict checks run against.
func (r *Resolver) Layout(ctx context.Context, technicianID string, from, to time.Time) ([]EventPlacement, error) {
	intervals, err := r.intervals.IntervalsFor(ctx, technicianID, from, to)
	if err != nil {
		return nil, err
	}
	spans := make([]Span, len(intervals))
	for i, iv := range intervals {
		spans[i] = Span{Start: iv.Start, End: iv.End}
	}
	placements := AssignColumns(spans)
	out := make([]EventPlacement, len(intervals))
	for i := range intervals {
		out[i] = EventPlacement{Interval: intervals[i], Placement: placements[i]}
	}
	return out, nil
}
