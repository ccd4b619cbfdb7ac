package replay

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pkgtools/aptrewind/types"
)

var (
	propPackages = []string{"foo", "bar", "baz", "qux"}
	propVersions = []string{"1.0-1", "1.1-1", "2.0-1", "2.0-2"}
	propKinds    = []types.EventKind{
		types.EventInstall,
		types.EventUpgrade,
		types.EventDowngrade,
		types.EventRemove,
		types.EventPurge,
		types.EventConfigureHalf,
		types.EventConfigureFull,
		types.EventTriggersPending,
	}
)

// genEventSeq produces a time-ordered event sequence over a small package
// and version universe, encoded as index triples so shrinking stays sane.
func genEventSeq() gopter.Gen {
	genTriple := gen.Struct(reflect.TypeOf(eventSeed{}), map[string]gopter.Gen{
		"Pkg":     gen.IntRange(0, len(propPackages)-1),
		"Kind":    gen.IntRange(0, len(propKinds)-1),
		"Version": gen.IntRange(0, len(propVersions)-1),
	})
	return gen.SliceOf(genTriple).Map(func(seeds []eventSeed) []types.PackageEvent {
		events := make([]types.PackageEvent, 0, len(seeds))
		for i, s := range seeds {
			events = append(events, types.PackageEvent{
				Timestamp:    t0.Add(time.Duration(i) * time.Second),
				Package:      propPackages[s.Pkg],
				Architecture: "amd64",
				Kind:         propKinds[s.Kind],
				VersionAfter: propVersions[s.Version],
				Sequence:     int64(i),
			})
		}
		return events
	})
}

type eventSeed struct {
	Pkg     int
	Kind    int
	Version int
}

func TestReplayProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("replay is deterministic", prop.ForAll(
		func(events []types.PackageEvent, cutoffSec int) bool {
			cutoff := t0.Add(time.Duration(cutoffSec) * time.Second)
			first := Snapshot(events, cutoff)
			second := Snapshot(events, cutoff)
			return reflect.DeepEqual(first.Packages, second.Packages)
		},
		genEventSeq(),
		gen.IntRange(0, 100),
	))

	properties.Property("cutoff ignores later events", prop.ForAll(
		func(events []types.PackageEvent, cutoffSec int) bool {
			cutoff := t0.Add(time.Duration(cutoffSec) * time.Second)
			truncated := make([]types.PackageEvent, 0, len(events))
			for _, ev := range events {
				if !ev.Timestamp.After(cutoff) {
					truncated = append(truncated, ev)
				}
			}
			full := Snapshot(events, cutoff)
			trunc := Snapshot(truncated, cutoff)
			return reflect.DeepEqual(full.Packages, trunc.Packages)
		},
		genEventSeq(),
		gen.IntRange(0, 100),
	))

	properties.Property("packages without events between cutoffs keep their state", prop.ForAll(
		func(events []types.PackageEvent, aSec, bSec int) bool {
			if aSec > bSec {
				aSec, bSec = bSec, aSec
			}
			t1 := t0.Add(time.Duration(aSec) * time.Second)
			t2 := t0.Add(time.Duration(bSec) * time.Second)

			changed := make(map[string]bool)
			for _, ev := range events {
				if ev.Timestamp.After(t1) && !ev.Timestamp.After(t2) {
					changed[ev.Key()] = true
				}
			}

			s1 := Snapshot(events, t1)
			s2 := Snapshot(events, t2)
			for key, st := range s1.Packages {
				if changed[key] {
					continue
				}
				if !reflect.DeepEqual(st, s2.Packages[key]) {
					return false
				}
			}
			return true
		},
		genEventSeq(),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
