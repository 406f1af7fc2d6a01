// Package ranking scores and orders candidate technicians for a job
// using weighted factors: availability, distance, reliability, skill
// match and the preferred-vendor relationship.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shotfleet/shotfleet/core/model"
)

// ConflictChecker is the slice of the scheduling resolver the engine
// needs: a pure read answering "is this technician booked then".
type ConflictChecker interface {
	HasConflict(ctx context.Context, technicianID string, start, end time.Time) (bool, error)
}

// Weights tunes the relative importance of the four base factors. They
// should sum to 1.0; Validate enforces it within a small tolerance.
type Weights struct {
	Availability float64 `json:"availability"`
	Distance     float64 `json:"distance"`
	Reliability  float64 `json:"reliability"`
	SkillMatch   float64 `json:"skill_match"`
}

// Validate checks the weights sum to 1.0.
func (w Weights) Validate() error {
	sum := w.Availability + w.Distance + w.Reliability + w.SkillMatch
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.3f: %w", sum, model.ErrInvalidArgument)
	}
	return nil
}

// Engine ranks technicians for a job. Scores are recomputed from current
// calendar state on every call; nothing is cached across scheduling
// mutations.
type Engine struct {
	Weights Weights

	// DistanceFalloff is the per-kilometre score penalty k in
	// distanceScore = clamp(100 - km*k, 0, 100).
	DistanceFalloff float64

	// PreferredBoost is the flat bonus added when the job's organization
	// marked the technician as a preferred vendor.
	PreferredBoost float64

	conflicts ConflictChecker
}

// NewEngine returns an engine with the default weights and tuning.
func NewEngine(conflicts ConflictChecker) *Engine {
	return &Engine{
		Weights: Weights{
			Availability: 0.35,
			Distance:     0.30,
			Reliability:  0.20,
			SkillMatch:   0.15,
		},
		DistanceFalloff: 2.0,
		PreferredBoost:  10,
		conflicts:       conflicts,
	}
}

// Rank scores the candidate pool for the job and returns schedulable
// technicians in descending total-score order. Ties break by ascending
// distance, then technician ID, so repeated calls on identical inputs
// yield identical orderings. Technicians with a calendar conflict are
// excluded entirely, not merely penalised. An empty pool yields an empty
// result.
func (e *Engine) Rank(ctx context.Context, org model.OrgContext, job model.Project, pool []model.Technician) ([]model.RankedCandidate, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if err := e.Weights.Validate(); err != nil {
		return nil, err
	}
	if org.OrganizationID != "" && org.OrganizationID != job.OrganizationID {
		return nil, fmt.Errorf("job %s belongs to another organization: %w", job.ID, model.ErrInvalidArgument)
	}
	start, end := job.Window()

	var ranked []model.RankedCandidate
	for _, tech := range pool {
		conflict, err := e.conflicts.HasConflict(ctx, tech.ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("conflict check %s: %w", tech.ID, err)
		}
		if conflict {
			continue
		}
		ranked = append(ranked, model.RankedCandidate{
			Technician: tech,
			Score:      e.score(job, tech),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i].Score, ranked[j].Score
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.TechnicianID < b.TechnicianID
	})
	return ranked, nil
}

// score computes the factor breakdown for one schedulable technician.
// Availability is 100 by construction: conflicted candidates never reach
// this point.
func (e *Engine) score(job model.Project, tech model.Technician) model.RankingScore {
	s := model.RankingScore{TechnicianID: tech.ID, Availability: 100}

	s.DistanceKm = tech.HomeLocation.DistanceKm(job.Location)
	s.DistanceScore = clamp(100-s.DistanceKm*e.DistanceFalloff, 0, 100)
	s.ReliabilityScore = clamp(tech.Reliability.OnTimeRate*100, 0, 100)
	s.SkillMatchScore = skillMatch(job.RequiredSkills, tech)
	if tech.PreferredByOrg(job.OrganizationID) {
		s.PreferredBoost = e.PreferredBoost
	}

	s.TotalScore = s.Availability*e.Weights.Availability +
		s.DistanceScore*e.Weights.Distance +
		s.ReliabilityScore*e.Weights.Reliability +
		s.SkillMatchScore*e.Weights.SkillMatch +
		s.PreferredBoost
	return s
}

// skillMatch returns the proportion of required skills the technician
// offers with positive proficiency, scaled to 0-100. A job with no
// required skills matches everyone fully.
func skillMatch(required []string, tech model.Technician) float64 {
	if len(required) == 0 {
		return 100
	}
	matched := 0
	for _, tag := range required {
		if tech.HasSkill(tag) {
			matched++
		}
	}
	return float64(matched) / float64(len(required)) * 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
