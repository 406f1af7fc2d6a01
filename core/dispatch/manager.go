// Package dispatch orchestrates staffing: it ranks candidates for a
// job, offers the assignment to technicians in score order, and commits
// the winner's calendar reservation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shotfleet/shotfleet/core/dispatch/logging"
	"github.com/shotfleet/shotfleet/core/events"
	"github.com/shotfleet/shotfleet/core/logger"
	"github.com/shotfleet/shotfleet/core/metrics"
	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/core/ranking"
	"github.com/shotfleet/shotfleet/core/repo"
	"github.com/shotfleet/shotfleet/core/schedule"
	"github.com/shotfleet/shotfleet/core/techstatus"
	"github.com/shotfleet/shotfleet/internal/eventbus"
)

// ErrNoTechnicianAvailable is returned when every ranked candidate
// declined, failed or lost their slot before the reservation committed.
var ErrNoTechnicianAvailable = errors.New("no technician available")

// AssignmentResult reports the outcome of one staffing run.
type AssignmentResult struct {
	ProjectID    string
	TechnicianID string
	IntervalID   string
	Assigned     bool
	Declined     []string
	Errors       map[string]error
	Scores       map[string]model.RankingScore
}

// AssignmentManager runs the offer loop for a job. Ranking happens
// fresh per run; each candidate gets one offer, and the reservation is
// only committed after the technician accepts, so a decline never
// blocks the calendar.
type AssignmentManager struct {
	engine      *ranking.Engine
	resolver    *schedule.Resolver
	projects    repo.ProjectRepository
	technicians repo.TechnicianRepository
	notifier    Notifier

	offerTimeout  time.Duration
	maxCandidates int

	log  logger.Logger
	sink metrics.MetricsSink
	bus  eventbus.EventBus

	mu       sync.Mutex
	store    logging.LogStore
	statuses techstatus.Store
	history  []AssignmentResult
}

// NewAssignmentManager creates a manager. offerTimeout defaults to five
// seconds when non-positive; maxCandidates zero means offer to everyone
// ranked.
func NewAssignmentManager(engine *ranking.Engine, resolver *schedule.Resolver, projects repo.ProjectRepository, technicians repo.TechnicianRepository, notifier Notifier, offerTimeout time.Duration, maxCandidates int, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*AssignmentManager, error) {
	if engine == nil || resolver == nil || projects == nil || technicians == nil || notifier == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewAssignmentManager")
	}
	if offerTimeout <= 0 {
		offerTimeout = 5 * time.Second
	}
	return &AssignmentManager{
		engine:        engine,
		resolver:      resolver,
		projects:      projects,
		technicians:   technicians,
		notifier:      notifier,
		offerTimeout:  offerTimeout,
		maxCandidates: maxCandidates,
		sink:          sink,
		bus:           bus,
		log:           log,
	}, nil
}

// SetLogStore configures the store used to persist dispatch records.
func (m *AssignmentManager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetStatusStore configures the snapshot store updated as offers go
// out and assignments commit.
func (m *AssignmentManager) SetStatusStore(store techstatus.Store) {
	m.mu.Lock()
	m.statuses = store
	m.mu.Unlock()
}

// Close releases resources held by the manager.
func (m *AssignmentManager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

// Run staffs project IDs arriving on the channel until the context is
// cancelled. Fulfillment feeds it newly created jobs.
func (m *AssignmentManager) Run(ctx context.Context, jobs <-chan string) {
	for {
		select {
		case projectID := <-jobs:
			org := model.OrgContext{}
			if _, err := m.Staff(ctx, org, projectID); err != nil {
				m.log.Warnf("staffing %s: %v", projectID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// sendAndWait delivers the offer and waits for the answer while
// measuring the round trip.
func (m *AssignmentManager) sendAndWait(technicianID string, offer Offer) (bool, time.Duration, error) {
	start := time.Now()
	offerID, err := m.notifier.SendOffer(technicianID, offer)
	if err != nil {
		notifyFailure.Inc()
		return false, time.Since(start), err
	}
	notifySuccess.Inc()
	accepted, err := m.notifier.WaitForAnswer(offerID, m.offerTimeout)
	return accepted, time.Since(start), err
}

func (m *AssignmentManager) statusStore() techstatus.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses
}

// Staff ranks the pool for the project and walks the ranked list until
// a technician accepts and their reservation commits. A candidate whose
// slot was taken between ranking and reservation (ErrConflict) is
// skipped, not fatal.
func (m *AssignmentManager) Staff(ctx context.Context, org model.OrgContext, projectID string) (AssignmentResult, error) {
	result := AssignmentResult{
		ProjectID: projectID,
		Errors:    make(map[string]error),
		Scores:    make(map[string]model.RankingScore),
	}

	project, err := m.projects.FindProject(ctx, projectID)
	if err != nil {
		return result, fmt.Errorf("project %s: %w", projectID, err)
	}
	pool, err := m.technicians.ListTechnicians(ctx, project.OrganizationID)
	if err != nil {
		return result, fmt.Errorf("list technicians: %w", err)
	}
	active := pool[:0]
	for _, t := range pool {
		if t.Active {
			active = append(active, t)
		}
	}

	ranked, err := m.engine.Rank(ctx, org, project, active)
	if err != nil {
		return result, err
	}
	candidatePoolSize.Set(float64(len(ranked)))
	if pr, ok := m.sink.(metrics.PoolSizeRecorder); ok {
		if err := pr.RecordPoolSize(len(ranked)); err != nil {
			m.log.Errorf("pool size metrics error: %v", err)
		}
	}
	m.log.Infof("ranked %d candidates for project %s", len(ranked), projectID)

	for _, rc := range ranked {
		result.Scores[rc.Technician.ID] = rc.Score
	}

	start, end := project.Window()
	offer := Offer{ProjectID: project.ID, Start: start, End: end, Address: project.Address}

	var latencies []metrics.OfferLatency
	offered := 0
	for _, rc := range ranked {
		if m.maxCandidates > 0 && offered >= m.maxCandidates {
			break
		}
		offered++
		tech := rc.Technician
		accepted, dur, err := m.sendAndWait(tech.ID, offer)
		offersSent.WithLabelValues(project.OrganizationID).Inc()
		offerLatency.WithLabelValues(project.OrganizationID).Observe(dur.Seconds())
		latencies = append(latencies, metrics.OfferLatency{
			TechnicianID: tech.ID,
			ProjectID:    project.ID,
			Accepted:     accepted && err == nil,
			Latency:      dur,
		})
		if ss := m.statusStore(); ss != nil {
			ss.RecordOffer(tech.ID, project.OrganizationID, techstatus.LastOffer{
				ProjectID: project.ID,
				Accepted:  accepted && err == nil,
				Timestamp: time.Now(),
			})
		}
		if m.bus != nil {
			m.bus.Publish(events.OfferEvent{
				TechnicianID: tech.ID,
				ProjectID:    project.ID,
				Accepted:     accepted && err == nil,
				Err:          err,
				Latency:      dur,
			})
		}
		if err != nil {
			result.Errors[tech.ID] = err
			continue
		}
		if !accepted {
			result.Declined = append(result.Declined, tech.ID)
			continue
		}

		iv, err := m.resolver.Reserve(ctx, tech.ID, project.ID, start, end)
		if err != nil {
			if errors.Is(err, model.ErrConflict) {
				m.log.Warnf("technician %s lost slot for %s, trying next", tech.ID, project.ID)
				result.Errors[tech.ID] = err
				continue
			}
			return result, err
		}
		if err := m.projects.AssignTechnician(ctx, project.ID, tech.ID); err != nil {
			// Roll the reservation back so the calendar does not hold a
			// block for an unassigned job.
			_ = m.resolver.Release(ctx, iv.ID)
			return result, fmt.Errorf("assign %s: %w", project.ID, err)
		}

		result.Assigned = true
		result.TechnicianID = tech.ID
		result.IntervalID = iv.ID
		if ss := m.statusStore(); ss != nil {
			ss.RecordAssignment(tech.ID, project.OrganizationID, techstatus.LastAssignment{
				ProjectID:  project.ID,
				IntervalID: iv.ID,
				Timestamp:  time.Now(),
			})
		}
		if m.bus != nil {
			m.bus.Publish(events.AssignmentEvent{
				ProjectID:    project.ID,
				TechnicianID: tech.ID,
				Score:        rc.Score,
				IntervalID:   iv.ID,
			})
		}
		break
	}

	if offered > 0 {
		accepted := 0.0
		if result.Assigned {
			accepted = 1
		}
		acceptRate.WithLabelValues(project.OrganizationID).Set(accepted / float64(offered))
	}
	m.recordMetrics(project, result, latencies)
	m.appendRecord(ctx, project, ranked, result)
	m.mu.Lock()
	m.history = append(m.history, result)
	m.mu.Unlock()

	if !result.Assigned {
		return result, fmt.Errorf("project %s: %w", projectID, ErrNoTechnicianAvailable)
	}
	return result, nil
}

// History returns a copy of past staffing outcomes.
func (m *AssignmentManager) History() []AssignmentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AssignmentResult(nil), m.history...)
}

// recordMetrics persists staffing metrics if a sink is configured.
func (m *AssignmentManager) recordMetrics(project model.Project, res AssignmentResult, lat []metrics.OfferLatency) {
	if m.sink == nil {
		return
	}
	var recs []metrics.AssignmentRecord
	for techID, score := range res.Scores {
		recs = append(recs, metrics.AssignmentRecord{
			ProjectID:    project.ID,
			TechnicianID: techID,
			OrgID:        project.OrganizationID,
			Score:        score,
			Accepted:     res.Assigned && techID == res.TechnicianID,
			ScheduledAt:  project.ScheduledTime,
			DecidedAt:    time.Now(),
		})
	}
	if err := m.sink.RecordAssignments(recs); err != nil {
		m.log.Errorf("metrics error: %v", err)
	}
	if lr, ok := m.sink.(metrics.LatencyRecorder); ok && len(lat) > 0 {
		if err := lr.RecordOfferLatency(lat); err != nil {
			m.log.Errorf("latency metrics error: %v", err)
		}
	}
}

// appendRecord writes the staffing decision to the log store.
func (m *AssignmentManager) appendRecord(ctx context.Context, project model.Project, ranked []model.RankedCandidate, res AssignmentResult) {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return
	}
	rec := logging.Record{
		Timestamp:  time.Now(),
		ProjectID:  project.ID,
		OrgID:      project.OrganizationID,
		Candidates: make([]string, 0, len(ranked)),
		Result: logging.Result{
			AssignedTechnician: res.TechnicianID,
			IntervalID:         res.IntervalID,
			Declined:           res.Declined,
			Errors:             map[string]string{},
			Scores:             map[string]float64{},
		},
	}
	for _, rc := range ranked {
		rec.Candidates = append(rec.Candidates, rc.Technician.ID)
	}
	for id, err := range res.Errors {
		if err != nil {
			rec.Result.Errors[id] = err.Error()
		}
	}
	for id, score := range res.Scores {
		rec.Result.Scores[id] = score.TotalScore
	}
	if err := store.Append(ctx, rec); err != nil {
		m.log.Errorf("dispatch log append: %v", err)
	}
}
