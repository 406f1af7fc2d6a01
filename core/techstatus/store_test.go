package techstatus

import "testing"

func TestMemoryStore_FilterOrg(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Snapshot{TechnicianID: "t1", OrgID: "org-1"})
	s.Set(Snapshot{TechnicianID: "t2", OrgID: "org-2"})
	out := s.List(Filter{OrgID: "org-1"})
	if len(out) != 1 || out[0].TechnicianID != "t1" {
		t.Fatalf("filter failed: %#v", out)
	}
}

func TestMemoryStore_FilterStatus(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Snapshot{TechnicianID: "t1"})
	s.RecordOffer("t2", "org-1", LastOffer{ProjectID: "p1"})
	out := s.List(Filter{Status: "offered"})
	if len(out) != 1 || out[0].TechnicianID != "t2" {
		t.Fatalf("status filter failed: %#v", out)
	}
}

func TestMemoryStore_RecordAssignment(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Snapshot{TechnicianID: "t1"})
	s.RecordAssignment("t1", "org-1", LastAssignment{ProjectID: "p1", IntervalID: "iv1"})
	out := s.List(Filter{})
	if out[0].CurrentStatus != "assigned" || out[0].LastAssignment.IntervalID != "iv1" {
		t.Fatalf("assignment not recorded: %#v", out[0])
	}
}

func TestMemoryStore_RecordOfferNew(t *testing.T) {
	s := NewMemoryStore()
	s.RecordOffer("t3", "org-1", LastOffer{ProjectID: "p1"})
	out := s.List(Filter{})
	if len(out) != 1 || out[0].TechnicianID != "t3" {
		t.Fatalf("auto create failed %#v", out)
	}
}

func TestMemoryStore_RecordedSnapshotsCarryOrg(t *testing.T) {
	s := NewMemoryStore()
	s.RecordOffer("t1", "org-1", LastOffer{ProjectID: "p1"})
	s.RecordAssignment("t2", "org-2", LastAssignment{ProjectID: "p2"})
	out := s.List(Filter{OrgID: "org-2"})
	if len(out) != 1 || out[0].TechnicianID != "t2" {
		t.Fatalf("org filter over recorded snapshots failed: %#v", out)
	}
}

func TestMemoryStore_ListSorted(t *testing.T) {
	s := NewMemoryStore()
	s.Set(Snapshot{TechnicianID: "b"})
	s.Set(Snapshot{TechnicianID: "a"})
	out := s.List(Filter{})
	if len(out) != 2 || out[0].TechnicianID != "a" {
		t.Fatalf("expected sorted output, got %#v", out)
	}
}
