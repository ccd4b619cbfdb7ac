package planner

import (
	"reflect"
	"time"

	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pkgtools/aptrewind/types"
)

var propPackages = []string{"alpha", "beta", "gamma", "delta", "epsilon"}

type stateSeed struct {
	Pkg     int
	Version int
	Present bool
}

func genSnapshot() gopter.Gen {
	genSeed := gen.Struct(reflect.TypeOf(stateSeed{}), map[string]gopter.Gen{
		"Pkg":     gen.IntRange(0, len(propPackages)-1),
		"Version": gen.IntRange(0, 3),
		"Present": gen.Bool(),
	})
	return gen.SliceOf(genSeed).Map(func(seeds []stateSeed) types.PackageSnapshot {
		s := types.NewSnapshot(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		for _, seed := range seeds {
			st := types.PackageState{
				Package:      propPackages[seed.Pkg],
				Architecture: "amd64",
				Version:      []string{"1.0", "1.1", "2.0", "3.0"}[seed.Version],
				Present:      seed.Present,
			}
			s.Packages[st.Key()] = st
		}
		return s
	})
}

func TestDiffProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("diffing a snapshot with itself yields no actions", prop.ForAll(
		func(s types.PackageSnapshot) bool {
			return len(Diff(s, s)) == 0
		},
		genSnapshot(),
	))

	properties.Property("every differing package yields exactly one action", prop.ForAll(
		func(current, target types.PackageSnapshot) bool {
			plan := Diff(current, target)
			if Validate(plan) != nil {
				return false
			}

			byKey := make(map[string]types.RollbackAction, len(plan))
			for _, a := range plan {
				byKey[a.Key()] = a
			}

			keys := make(map[string]bool)
			for k := range current.Packages {
				keys[k] = true
			}
			for k := range target.Packages {
				keys[k] = true
			}

			for k := range keys {
				curVer, curOK := current.Installed(k)
				tgtVer, tgtOK := target.Installed(k)
				action, planned := byKey[k]

				switch {
				case curOK && !tgtOK:
					if !planned || action.Kind != types.ActionRemoveCompletely {
						return false
					}
				case tgtOK && (!curOK || curVer != tgtVer):
					if !planned || action.Kind != types.ActionInstallVersion || action.TargetVersion != tgtVer {
						return false
					}
				default:
					if planned {
						return false
					}
				}
			}
			return true
		},
		genSnapshot(),
		genSnapshot(),
	))

	properties.Property("plan order puts removals first", prop.ForAll(
		func(current, target types.PackageSnapshot) bool {
			plan := Diff(current, target)
			seenInstall := false
			for _, a := range plan {
				if a.Kind == types.ActionInstallVersion {
					seenInstall = true
				}
				if a.Kind == types.ActionRemoveCompletely && seenInstall {
					return false
				}
			}
			return true
		},
		genSnapshot(),
		genSnapshot(),
	))

	properties.TestingRun(t)
}
