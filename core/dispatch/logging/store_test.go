package logging

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecord(projectID, techID string, ts time.Time) Record {
	return Record{
		Timestamp:  ts,
		ProjectID:  projectID,
		OrgID:      "org-1",
		Candidates: []string{techID, "runner-up"},
		Result: Result{
			AssignedTechnician: techID,
			IntervalID:         "iv-1",
			Scores:             map[string]float64{techID: 87.5},
		},
	}
}

func storeBackends(t *testing.T) map[string]LogStore {
	t.Helper()
	dir := t.TempDir()
	jsonl, err := NewJSONLStore(filepath.Join(dir, "dispatch.log"))
	if err != nil {
		t.Fatalf("jsonl store: %v", err)
	}
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "dispatch.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	return map[string]LogStore{"jsonl": jsonl, "sqlite": sqlite}
}

func TestLogStore_AppendAndQuery(t *testing.T) {
	base := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { _ = store.Close() }()
			ctx := context.Background()
			if err := store.Append(ctx, sampleRecord("p1", "t1", base)); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := store.Append(ctx, sampleRecord("p2", "t2", base.Add(time.Hour))); err != nil {
				t.Fatalf("append: %v", err)
			}

			all, err := store.Query(ctx, Query{})
			if err != nil {
				t.Fatalf("query all: %v", err)
			}
			if len(all) != 2 {
				t.Fatalf("all = %d, want 2", len(all))
			}

			byProject, err := store.Query(ctx, Query{ProjectID: "p1"})
			if err != nil {
				t.Fatalf("query project: %v", err)
			}
			if len(byProject) != 1 || byProject[0].ProjectID != "p1" {
				t.Errorf("byProject = %v", byProject)
			}
			if byProject[0].Result.AssignedTechnician != "t1" {
				t.Errorf("result lost on round trip: %+v", byProject[0].Result)
			}

			byTech, err := store.Query(ctx, Query{TechnicianID: "t2"})
			if err != nil {
				t.Fatalf("query technician: %v", err)
			}
			if len(byTech) != 1 || byTech[0].Result.AssignedTechnician != "t2" {
				t.Errorf("byTech = %v", byTech)
			}

			windowed, err := store.Query(ctx, Query{Start: base.Add(30 * time.Minute)})
			if err != nil {
				t.Fatalf("query window: %v", err)
			}
			if len(windowed) != 1 || windowed[0].ProjectID != "p2" {
				t.Errorf("windowed = %v", windowed)
			}
		})
	}
}

func TestLogStore_QueryEmpty(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			defer func() { _ = store.Close() }()
			recs, err := store.Query(context.Background(), Query{ProjectID: "nothing"})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(recs) != 0 {
				t.Errorf("recs = %v, want none", recs)
			}
		})
	}
}
