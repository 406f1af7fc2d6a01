package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

// MemoryStore implements every repository interface in memory. It is the
// default wiring for tests and single-node deployments without a
// database file.
type MemoryStore struct {
	mu          sync.RWMutex
	projects    map[string]model.Project
	technicians map[string]model.Technician
	intervals   map[string]model.CommittedInterval
	orders      map[string]model.Order // keyed by external session ID
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:    make(map[string]model.Project),
		technicians: make(map[string]model.Technician),
		intervals:   make(map[string]model.CommittedInterval),
		orders:      make(map[string]model.Order),
	}
}

func (s *MemoryStore) CreateProject(_ context.Context, p model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
	return nil
}

func (s *MemoryStore) FindProject(_ context.Context, id string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, model.ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindProjectsByOrg(_ context.Context, orgID string) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Project
	for _, p := range s.projects {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateProjectStatus(_ context.Context, id string, status model.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return model.ErrNotFound
	}
	p.Status = status
	s.projects[id] = p
	return nil
}

func (s *MemoryStore) AssignTechnician(_ context.Context, projectID, technicianID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return model.ErrNotFound
	}
	p.AssignedTechnicianID = technicianID
	p.Status = model.ProjectBooked
	s.projects[projectID] = p
	return nil
}

// UpsertTechnician stores or replaces a technician profile. Not part of
// the engine-facing interfaces; used by tests and seeding.
func (s *MemoryStore) UpsertTechnician(t model.Technician) {
	s.mu.Lock()
	s.technicians[t.ID] = t
	s.mu.Unlock()
}

func (s *MemoryStore) FindTechnician(_ context.Context, id string) (model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.technicians[id]
	if !ok {
		return model.Technician{}, model.ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) ListTechnicians(_ context.Context, _ string) ([]model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateInterval(_ context.Context, iv model.CommittedInterval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.intervals[iv.ID] = iv
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteInterval(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intervals[id]; !ok {
		return model.ErrNotFound
	}
	delete(s.intervals, id)
	return nil
}

func (s *MemoryStore) IntervalsFor(_ context.Context, technicianID string, from, to time.Time) ([]model.CommittedInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CommittedInterval
	for _, iv := range s.intervals {
		if iv.TechnicianID != technicianID {
			continue
		}
		if iv.Start.Before(to) && from.Before(iv.End) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ExternalSessionID]; ok {
		return model.ErrInvalidArgument
	}
	s.orders[o.ExternalSessionID] = o
	return nil
}

func (s *MemoryStore) FindOrderBySession(_ context.Context, sessionID string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[sessionID]
	if !ok {
		return model.Order{}, model.ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) ListOrdersByStatus(_ context.Context, status model.OrderStatus) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalSessionID < out[j].ExternalSessionID })
	return out, nil
}

func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, sessionID string, expected, next model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[sessionID]
	if !ok {
		return false, model.ErrNotFound
	}
	if o.Status != expected {
		return false, nil
	}
	o.Status = next
	s.orders[sessionID] = o
	return true, nil
}

func (s *MemoryStore) SetResultingProject(_ context.Context, sessionID, projectID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[sessionID]
	if !ok {
		return false, model.ErrNotFound
	}
	if o.Status != model.OrderPaymentCompleted {
		return false, nil
	}
	o.Status = model.OrderProjectCreated
	o.ResultingProjectID = projectID
	s.orders[sessionID] = o
	return true, nil
}
