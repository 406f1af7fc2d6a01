// Package techstatus keeps a live snapshot of each technician's
// dispatch state: the last offer they received and the last assignment
// that committed. The snapshot is derived data; the calendar and
// project repositories stay the source of truth.
package techstatus

import (
	"sort"
	"sync"
	"time"
)

// LastOffer summarises the most recent offer sent to a technician.
type LastOffer struct {
	ProjectID string    `json:"project_id"`
	Accepted  bool      `json:"accepted"`
	Timestamp time.Time `json:"timestamp"`
}

// LastAssignment summarises the most recent committed assignment.
type LastAssignment struct {
	ProjectID  string    `json:"project_id"`
	IntervalID string    `json:"interval_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot captures the current known dispatch state of a technician.
type Snapshot struct {
	TechnicianID   string         `json:"technician_id"`
	OrgID          string         `json:"org_id,omitempty"`
	CurrentStatus  string         `json:"current_status"`
	LastOffer      LastOffer      `json:"last_offer"`
	LastAssignment LastAssignment `json:"last_assignment"`

	// NextFreeSlot is filled by the API layer from the availability
	// computer and is never stored.
	NextFreeSlot *time.Time `json:"next_free_slot,omitempty"`
}

type Filter struct {
	OrgID  string
	Status string
}

type Store interface {
	Set(Snapshot)
	List(Filter) []Snapshot
	RecordOffer(id, orgID string, o LastOffer)
	RecordAssignment(id, orgID string, a LastAssignment)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Snapshot{}}
}

func (s *MemoryStore) Set(sn Snapshot) {
	s.mu.Lock()
	s.data[sn.TechnicianID] = sn
	s.mu.Unlock()
}

func (s *MemoryStore) RecordOffer(id, orgID string, o LastOffer) {
	s.mu.Lock()
	sn := s.data[id]
	if sn.TechnicianID == "" {
		sn.TechnicianID = id
	}
	if orgID != "" {
		sn.OrgID = orgID
	}
	sn.LastOffer = o
	sn.CurrentStatus = "offered"
	s.data[id] = sn
	s.mu.Unlock()
}

func (s *MemoryStore) RecordAssignment(id, orgID string, a LastAssignment) {
	s.mu.Lock()
	sn := s.data[id]
	if sn.TechnicianID == "" {
		sn.TechnicianID = id
	}
	if orgID != "" {
		sn.OrgID = orgID
	}
	sn.LastAssignment = a
	sn.CurrentStatus = "assigned"
	s.data[id] = sn
	s.mu.Unlock()
}

func (s *MemoryStore) List(f Filter) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Snapshot, 0, len(s.data))
	for _, sn := range s.data {
		if f.OrgID != "" && sn.OrgID != f.OrgID {
			continue
		}
		if f.Status != "" && sn.CurrentStatus != f.Status {
			continue
		}
		res = append(res, sn)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TechnicianID < res[j].TechnicianID })
	return res
}
