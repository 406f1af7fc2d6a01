package ranking

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/shotfleet/shotfleet/core/model"
)

// ErrInfeasible indicates the batch assignment LP had no solution
// staffing every job.
var ErrInfeasible = errors.New("assignment infeasible")

// Planner assigns a batch of jobs to a technician pool at once,
// maximising total ranking score under one-job-per-technician
// constraints. The single-job path stays with Engine.Rank; the planner
// serves morning-of batch staffing where jobs compete for the same
// people.
type Planner struct {
	Engine *Engine
}

// NewPlanner creates a planner on top of the given engine.
func NewPlanner(engine *Engine) *Planner {
	return &Planner{Engine: engine}
}

// conflictPenalty prices a non-schedulable pairing out of the optimum.
// It must dwarf any achievable score gap (totals top out near 110), so
// the simplex only lands on a conflicted pairing when no conflict-free
// assignment exists at all.
const conflictPenalty = -1e6

type assignmentData struct {
	jobIDs  []string
	techIDs []string
	// scores[i*len(techIDs)+j] is the ranking score of technician j for
	// job i, negative when the pairing is not schedulable.
	scores []float64
}

func (p *Planner) buildData(ctx context.Context, org model.OrgContext, jobs []model.Project, pool []model.Technician) (assignmentData, error) {
	data := assignmentData{
		jobIDs:  make([]string, len(jobs)),
		techIDs: make([]string, len(pool)),
		scores:  make([]float64, len(jobs)*len(pool)),
	}
	for j, t := range pool {
		data.techIDs[j] = t.ID
	}
	for i, job := range jobs {
		data.jobIDs[i] = job.ID
		ranked, err := p.Engine.Rank(ctx, org, job, pool)
		if err != nil {
			return assignmentData{}, fmt.Errorf("rank job %s: %w", job.ID, err)
		}
		byTech := make(map[string]float64, len(ranked))
		for _, rc := range ranked {
			byTech[rc.Technician.ID] = rc.Score.TotalScore
		}
		for j, t := range pool {
			score, ok := byTech[t.ID]
			if !ok {
				score = conflictPenalty
			}
			data.scores[i*len(pool)+j] = score
		}
	}
	return data, nil
}

// solveAssignment maximises total score subject to each job taking
// exactly one technician and each technician taking at most one job.
// Variables are the relaxed pairing indicators x_ij in [0,1]; the
// assignment polytope is integral, so the simplex optimum lands on a
// 0/1 vertex.
func solveAssignment(scores []float64, nJobs, nTechs int) ([]float64, error) {
	n := nJobs * nTechs
	c := make([]float64, n)
	for i, s := range scores {
		c[i] = -s
	}

	// Technician capacity and x <= 1 rows.
	rows := nTechs + n
	g := mat.NewDense(rows, n, nil)
	h := make([]float64, rows)
	for j := 0; j < nTechs; j++ {
		for i := 0; i < nJobs; i++ {
			g.Set(j, i*nTechs+j, 1)
		}
		h[j] = 1
	}
	for v := 0; v < n; v++ {
		g.Set(nTechs+v, v, 1)
		h[nTechs+v] = 1
	}

	// Every job staffed exactly once.
	a := mat.NewDense(nJobs, n, nil)
	b := make([]float64, nJobs)
	for i := 0; i < nJobs; i++ {
		for j := 0; j < nTechs; j++ {
			a.Set(i, i*nTechs+j, 1)
		}
		b[i] = 1
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	return sol, err
}

// lpSolve points to the solver so tests can simulate failures.
var lpSolve = solveAssignment

// AssignStrict solves the batch LP and returns a jobID->technicianID
// map. It fails with ErrInfeasible when any job cannot be staffed or a
// conflicted pairing would be required.
func (p *Planner) AssignStrict(ctx context.Context, org model.OrgContext, jobs []model.Project, pool []model.Technician) (map[string]string, error) {
	assignments := make(map[string]string)
	if len(jobs) == 0 {
		return assignments, nil
	}
	if len(pool) < len(jobs) {
		return nil, fmt.Errorf("%d jobs for %d technicians: %w", len(jobs), len(pool), ErrInfeasible)
	}
	data, err := p.buildData(ctx, org, jobs, pool)
	if err != nil {
		return nil, err
	}
	sol, err := lpSolve(data.scores, len(jobs), len(pool))
	if err != nil {
		return nil, fmt.Errorf("simplex: %w", ErrInfeasible)
	}
	for i, jobID := range data.jobIDs {
		best, bestVal := -1, 0.5
		for j := range data.techIDs {
			if v := sol[i*len(data.techIDs)+j]; v > bestVal {
				best, bestVal = j, v
			}
		}
		if best < 0 || data.scores[i*len(data.techIDs)+best] < 0 {
			return nil, fmt.Errorf("job %s unstaffed: %w", jobID, ErrInfeasible)
		}
		assignments[jobID] = data.techIDs[best]
	}
	return assignments, nil
}

// Assign tries the LP first and falls back to greedy best-ranked-first
// staffing when the strict solve is infeasible. Greedy may leave jobs
// unassigned; missing keys mean no schedulable technician remained.
func (p *Planner) Assign(ctx context.Context, org model.OrgContext, jobs []model.Project, pool []model.Technician) (map[string]string, error) {
	asn, err := p.AssignStrict(ctx, org, jobs, pool)
	if err == nil {
		return asn, nil
	}
	if !errors.Is(err, ErrInfeasible) {
		return nil, err
	}

	assignments := make(map[string]string)
	taken := make(map[string]bool)
	for _, job := range jobs {
		ranked, err := p.Engine.Rank(ctx, org, job, pool)
		if err != nil {
			return nil, err
		}
		for _, rc := range ranked {
			if !taken[rc.Technician.ID] {
				assignments[job.ID] = rc.Technician.ID
				taken[rc.Technician.ID] = true
				break
			}
		}
	}
	return assignments, nil
}
