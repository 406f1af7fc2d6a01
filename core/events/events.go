// Package events defines the messages published on the internal bus
// while jobs move through fulfillment and dispatch.
package events

import (
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

// JobCreatedEvent is published when fulfillment turns a paid order into
// a project.
type JobCreatedEvent struct {
	SessionID string
	ProjectID string
	OrgID     string
}

// OfferEvent records the outcome of one assignment offer sent to a
// technician's app.
type OfferEvent struct {
	TechnicianID string
	ProjectID    string
	Accepted     bool
	Err          error
	Latency      time.Duration
}

// AssignmentEvent is published when a project is staffed.
type AssignmentEvent struct {
	ProjectID    string
	TechnicianID string
	Score        model.RankingScore
	IntervalID   string
}

// StrategyEvent reports batch-planner strategy decisions (LP attempt,
// LP failure, greedy fallback).
type StrategyEvent struct {
	Action string
	Jobs   int
	Err    error
}
