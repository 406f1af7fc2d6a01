// Package storage implements the repository interfaces on SQLite.
// Rows carry a JSON document plus the columns queries filter on; the
// order-status CAS is a conditional UPDATE, which gives fulfillment its
// atomicity on a single node.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shotfleet/shotfleet/core/model"
)

// Store provides SQLite-backed repositories for projects, technicians,
// committed intervals and orders.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at path and ensures the
// schema.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    org_id TEXT,
    status INTEGER,
    record TEXT
);
CREATE TABLE IF NOT EXISTS technicians (
    id TEXT PRIMARY KEY,
    record TEXT
);
CREATE TABLE IF NOT EXISTS intervals (
    id TEXT PRIMARY KEY,
    technician_id TEXT,
    start_ts INTEGER,
    end_ts INTEGER,
    record TEXT
);
CREATE INDEX IF NOT EXISTS idx_intervals_tech ON intervals(technician_id, start_ts);
CREATE TABLE IF NOT EXISTS orders (
    session_id TEXT PRIMARY KEY,
    status INTEGER,
    project_id TEXT,
    created_ts INTEGER,
    record TEXT
);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateProject inserts the project. Creation is idempotent on the
// project ID so fulfillment retries converge on one row.
func (s *Store) CreateProject(ctx context.Context, p model.Project) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO projects (id, org_id, status, record) VALUES (?, ?, ?, ?)`,
		p.ID, p.OrganizationID, int(p.Status), string(b))
	return err
}

func (s *Store) FindProject(ctx context.Context, id string) (model.Project, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM projects WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, model.ErrNotFound
	}
	if err != nil {
		return model.Project{}, err
	}
	var p model.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return model.Project{}, fmt.Errorf("unmarshal project: %w", err)
	}
	return p, nil
}

func (s *Store) FindProjectsByOrg(ctx context.Context, orgID string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM projects WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Project
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var p model.Project
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("unmarshal project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProjectStatus(ctx context.Context, id string, status model.ProjectStatus) error {
	return s.mutateProject(ctx, id, func(p *model.Project) {
		p.Status = status
	})
}

func (s *Store) AssignTechnician(ctx context.Context, projectID, technicianID string) error {
	return s.mutateProject(ctx, projectID, func(p *model.Project) {
		p.AssignedTechnicianID = technicianID
		p.Status = model.ProjectBooked
	})
}

// mutateProject rewrites one project row inside a transaction.
func (s *Store) mutateProject(ctx context.Context, id string, mutate func(*model.Project)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT record FROM projects WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	if err != nil {
		return err
	}
	var p model.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return fmt.Errorf("unmarshal project: %w", err)
	}
	mutate(&p)
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET status = ?, record = ? WHERE id = ?`,
		int(p.Status), string(b), id); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertTechnician stores or replaces a technician profile.
func (s *Store) UpsertTechnician(ctx context.Context, t model.Technician) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO technicians (id, record) VALUES (?, ?)
         ON CONFLICT(id) DO UPDATE SET record = excluded.record`,
		t.ID, string(b))
	return err
}

func (s *Store) FindTechnician(ctx context.Context, id string) (model.Technician, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM technicians WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Technician{}, model.ErrNotFound
	}
	if err != nil {
		return model.Technician{}, err
	}
	var t model.Technician
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return model.Technician{}, fmt.Errorf("unmarshal technician: %w", err)
	}
	return t, nil
}

func (s *Store) ListTechnicians(ctx context.Context, _ string) ([]model.Technician, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM technicians ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Technician
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t model.Technician
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshal technician: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateInterval(ctx context.Context, iv model.CommittedInterval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(iv)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO intervals (id, technician_id, start_ts, end_ts, record) VALUES (?, ?, ?, ?, ?)`,
		iv.ID, iv.TechnicianID, iv.Start.UnixMilli(), iv.End.UnixMilli(), string(b))
	return err
}

func (s *Store) DeleteInterval(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intervals WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) IntervalsFor(ctx context.Context, technicianID string, from, to time.Time) ([]model.CommittedInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM intervals
         WHERE technician_id = ? AND start_ts < ? AND end_ts > ?
         ORDER BY start_ts`,
		technicianID, to.UnixMilli(), from.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.CommittedInterval
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var iv model.CommittedInterval
		if err := json.Unmarshal([]byte(data), &iv); err != nil {
			return nil, fmt.Errorf("unmarshal interval: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, o model.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (session_id, status, project_id, created_ts, record) VALUES (?, ?, ?, ?, ?)`,
		o.ExternalSessionID, int(o.Status), o.ResultingProjectID, o.CreatedAt.Unix(), string(b))
	return err
}

func (s *Store) FindOrderBySession(ctx context.Context, sessionID string) (model.Order, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM orders WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, model.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	var o model.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return model.Order{}, fmt.Errorf("unmarshal order: %w", err)
	}
	return o, nil
}

func (s *Store) ListOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM orders WHERE status = ? ORDER BY session_id`, int(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Order
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var o model.Order
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CompareAndSwapStatus atomically moves the order from expected to next.
// The conditional UPDATE is the idempotency gate for webhook replays.
func (s *Store) CompareAndSwapStatus(ctx context.Context, sessionID string, expected, next model.OrderStatus) (bool, error) {
	return s.swapOrder(ctx, sessionID, int(expected), func(o *model.Order) {
		o.Status = next
	})
}

// SetResultingProject records the created project and finalizes the
// order.
func (s *Store) SetResultingProject(ctx context.Context, sessionID, projectID string) (bool, error) {
	return s.swapOrder(ctx, sessionID, int(model.OrderPaymentCompleted), func(o *model.Order) {
		o.Status = model.OrderProjectCreated
		o.ResultingProjectID = projectID
	})
}

func (s *Store) swapOrder(ctx context.Context, sessionID string, expected int, mutate func(*model.Order)) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var data string
	var status int
	err = tx.QueryRowContext(ctx, `SELECT status, record FROM orders WHERE session_id = ?`, sessionID).Scan(&status, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, model.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if status != expected {
		return false, nil
	}
	var o model.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return false, fmt.Errorf("unmarshal order: %w", err)
	}
	mutate(&o)
	b, err := json.Marshal(o)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, project_id = ?, record = ? WHERE session_id = ? AND status = ?`,
		int(o.Status), o.ResultingProjectID, string(b), sessionID, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, tx.Commit()
}
