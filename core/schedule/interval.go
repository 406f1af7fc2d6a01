// Package schedule implements the calendar math behind dispatch:
// half-open interval overlap, the column layout used to render
// concurrent events, availability slot computation and atomic
// reservation of technician time.
package schedule

import (
	"sort"
	"time"
)

// Span is a half-open time interval: Start is included, End is not.
type Span struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the two half-open intervals intersect.
// Touching endpoints do not overlap: [0,10) and [10,20) are disjoint.
func Overlaps(a, b Span) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapGroups returns, for each event, the indices of every event that
// directly overlaps it, including itself. Grouping is per-event, not a
// transitive clustering: two events that both overlap a third but not
// each other end up in different groups. Renderers assign columns per
// event independently, which is what this shape feeds.
func OverlapGroups(events []Span) [][]int {
	groups := make([][]int, len(events))
	for i, e := range events {
		for j, other := range events {
			if i == j || Overlaps(e, other) {
				groups[i] = append(groups[i], j)
			}
		}
	}
	return groups
}

// Clusters returns transitive connected components over the overlap
// relation: chained events land in one cluster even when the ends of the
// chain do not overlap each other. Callers that want consistent spans
// across a chain use this instead of OverlapGroups.
func Clusters(events []Span) [][]int {
	parent := make([]int, len(events))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if Overlaps(events[i], events[j]) {
				parent[find(i)] = find(j)
			}
		}
	}
	byRoot := make(map[int][]int)
	var roots []int
	for i := range events {
		r := find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], i)
	}
	out := make([][]int, 0, len(roots))
	for _, r := range roots {
		out = append(out, byRoot[r])
	}
	return out
}

// Placement positions one event on a fixed-width virtual column grid.
// Columns are 1-based.
type Placement struct {
	Index    int `json:"index"`
	ColStart int `json:"col_start"`
	ColSpan  int `json:"col_span"`
}

// AssignColumns lays the events out on a grid of
// max(1, largest overlap group) columns. An event in a group of n
// members spans floor(maxOverlap/n) columns, starting after the members
// that begin earlier. An event alone in its group spans the full grid.
func AssignColumns(events []Span) []Placement {
	groups := OverlapGroups(events)
	maxOverlap := 1
	for _, g := range groups {
		if len(g) > maxOverlap {
			maxOverlap = len(g)
		}
	}
	placements := make([]Placement, len(events))
	for i, g := range groups {
		span := maxOverlap / len(g)
		if span < 1 {
			span = 1
		}
		idx := indexInGroup(events, g, i)
		placements[i] = Placement{
			Index:    i,
			ColStart: idx*span + 1,
			ColSpan:  span,
		}
	}
	return placements
}

// indexInGroup returns the position of event i within its group ordered
// by start time, with index order breaking ties so placement stays
// deterministic for identical starts.
func indexInGroup(events []Span, group []int, i int) int {
	sorted := append([]int(nil), group...)
	sort.Slice(sorted, func(a, b int) bool {
		ea, eb := events[sorted[a]], events[sorted[b]]
		if ea.Start.Equal(eb.Start) {
			return sorted[a] < sorted[b]
		}
		return ea.Start.Before(eb.Start)
	})
	for pos, idx := range sorted {
		if idx == i {
			return pos
		}
	}
	return 0
}
