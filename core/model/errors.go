package model

import "errors"

// Core error taxonomy. Callers match with errors.Is.
var (
	// ErrNotFound indicates a missing project, technician or order.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates a malformed interval, non-positive
	// duration or a job without a resolvable location.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a reservation overlaps an already
	// committed interval. Expected during dispatch; callers retry with
	// the next ranked candidate.
	ErrConflict = errors.New("scheduling conflict")
	// ErrUpstreamTimeout marks a bounded external lookup that ran out of
	// budget. Retryable.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)
