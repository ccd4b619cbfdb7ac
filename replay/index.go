package replay

import (
	"time"

	"github.com/google/btree"

	"github.com/pkgtools/aptrewind/types"
)

// Index holds the merged event stream in a btree keyed by replay order,
// so cutoff slices and range queries don't rescan the whole corpus.
type Index struct {
	tree *btree.BTreeG[types.PackageEvent]
}

// NewIndex builds an index over the given events.
func NewIndex(events []types.PackageEvent) *Index {
	tree := btree.NewG(32, func(a, b types.PackageEvent) bool {
		return a.Before(b)
	})
	for _, ev := range events {
		tree.ReplaceOrInsert(ev)
	}
	return &Index{tree: tree}
}

// Len returns the number of indexed events.
func (ix *Index) Len() int { return ix.tree.Len() }

// EarliestTimestamp returns the timestamp of the first known event.
func (ix *Index) EarliestTimestamp() (time.Time, bool) {
	first, ok := ix.tree.Min()
	if !ok {
		return time.Time{}, false
	}
	return first.Timestamp, true
}

// LatestTimestamp returns the timestamp of the last known event.
func (ix *Index) LatestTimestamp() (time.Time, bool) {
	last, ok := ix.tree.Max()
	if !ok {
		return time.Time{}, false
	}
	return last.Timestamp, true
}

// EventsUpTo returns all events with timestamp <= cutoff, in replay order.
func (ix *Index) EventsUpTo(cutoff time.Time) []types.PackageEvent {
	var events []types.PackageEvent
	ix.tree.AscendLessThan(pivotAfter(cutoff), func(ev types.PackageEvent) bool {
		events = append(events, ev)
		return true
	})
	return events
}

// EventsBetween returns all events with timestamp in (after, upTo],
// in replay order.
func (ix *Index) EventsBetween(after, upTo time.Time) []types.PackageEvent {
	var events []types.PackageEvent
	ix.tree.AscendRange(pivotAfter(after), pivotAfter(upTo), func(ev types.PackageEvent) bool {
		events = append(events, ev)
		return true
	})
	return events
}

// pivotAfter is a synthetic key ordering strictly after every real event
// with timestamp <= t, making timestamp cutoffs inclusive.
func pivotAfter(t time.Time) types.PackageEvent {
	return types.PackageEvent{
		Timestamp:      t,
		SourcePriority: int(^uint(0) >> 1),
		Sequence:       int64(^uint64(0) >> 1),
	}
}
