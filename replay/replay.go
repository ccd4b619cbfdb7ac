// Package replay folds package event streams into point-in-time snapshots.
package replay

import (
	"time"

	"github.com/pkgtools/aptrewind/types"
)

// Replayer answers "what was installed at time T" for one event corpus.
// It holds only the immutable event index; every Snapshot call is an
// independent pure fold, so the same cutoff always yields the same result.
type Replayer struct {
	index *Index
}

// New builds a Replayer over the merged event stream.
func New(events []types.PackageEvent) *Replayer {
	return &Replayer{index: NewIndex(events)}
}

// Index exposes the underlying event index for range queries.
func (r *Replayer) Index() *Index { return r.index }

// EarliestTimestamp returns the first instant the corpus knows about.
// Targets before it cannot be reconstructed.
func (r *Replayer) EarliestTimestamp() (time.Time, bool) {
	return r.index.EarliestTimestamp()
}

// At replays all events with timestamp <= cutoff into a snapshot.
func (r *Replayer) At(cutoff time.Time) types.PackageSnapshot {
	return Snapshot(r.index.EventsUpTo(cutoff), cutoff)
}

// Snapshot folds an already-ordered event sequence into the package state
// as of cutoff. Events past the cutoff are ignored. The fold reads nothing
// but its arguments: no wall clock, no filesystem.
func Snapshot(events []types.PackageEvent, cutoff time.Time) types.PackageSnapshot {
	snap := types.NewSnapshot(cutoff)

	// Versions announced by half-configured / triggers-pending bookkeeping,
	// waiting for a "status installed" to activate them.
	pending := make(map[string]string)

	for _, ev := range events {
		if ev.Timestamp.After(cutoff) {
			continue
		}
		applyEvent(snap.Packages, pending, ev)
	}
	return snap
}

func applyEvent(packages map[string]types.PackageState, pending map[string]string, ev types.PackageEvent) {
	key := ev.Key()

	switch ev.Kind {
	case types.EventInstall, types.EventUpgrade, types.EventDowngrade:
		packages[key] = types.PackageState{
			Package:      ev.Package,
			Architecture: ev.Architecture,
			Version:      ev.VersionAfter,
			Present:      true,
		}
		delete(pending, key)

	case types.EventRemove:
		// Keep the last known version: a removed package is still
		// reportable, just not installed.
		version := ev.VersionBefore
		if version == "" {
			version = packages[key].Version
		}
		packages[key] = types.PackageState{
			Package:      ev.Package,
			Architecture: ev.Architecture,
			Version:      version,
			Present:      false,
		}
		delete(pending, key)

	case types.EventPurge:
		packages[key] = types.PackageState{
			Package:      ev.Package,
			Architecture: ev.Architecture,
			Present:      false,
		}
		delete(pending, key)

	case types.EventConfigureHalf, types.EventTriggersPending:
		if ev.VersionAfter != "" {
			pending[key] = ev.VersionAfter
		}

	case types.EventConfigureFull:
		version := pending[key]
		if version == "" {
			version = ev.VersionAfter
		}
		if version == "" {
			return
		}
		packages[key] = types.PackageState{
			Package:      ev.Package,
			Architecture: ev.Architecture,
			Version:      version,
			Present:      true,
		}
		delete(pending, key)

	case types.EventUnknown:
		// Recorded as a warning at parse time; no state change.
	}
}
