// Package logging persists dispatch decisions for audit and debugging.
package logging

import (
	"context"
	"time"
)

// Record captures one staffing decision and its outcome.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	ProjectID  string    `json:"project_id"`
	OrgID      string    `json:"org_id"`
	Candidates []string  `json:"candidates"`
	Result     Result    `json:"result"`
}

// Result summarises the outcome of one staffing run.
type Result struct {
	AssignedTechnician string             `json:"assigned_technician,omitempty"`
	IntervalID         string             `json:"interval_id,omitempty"`
	Declined           []string           `json:"declined,omitempty"`
	Errors             map[string]string  `json:"errors,omitempty"`
	Scores             map[string]float64 `json:"scores,omitempty"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start        time.Time
	End          time.Time
	TechnicianID string
	ProjectID    string
}

// LogStore persists Records and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
