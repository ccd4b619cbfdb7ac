// Package planner turns two package snapshots into an ordered rollback plan.
package planner

import (
	"fmt"
	"sort"

	"github.com/pkgtools/aptrewind/types"
)

// Diff compares the current snapshot against the target-time snapshot and
// returns the actions that transform current into target. NoOp entries are
// omitted from the plan. Removals come first, then installs, each group
// sorted by package key; a package appears at most once. Dependency
// ordering across packages is the installer's concern, not the differ's.
func Diff(current, target types.PackageSnapshot) []types.RollbackAction {
	removes := findRemovals(current, target)
	installs := findInstalls(current, target)

	sortByKey(removes)
	sortByKey(installs)

	return append(removes, installs...)
}

// findRemovals finds packages installed now that did not exist at the
// target time.
func findRemovals(current, target types.PackageSnapshot) []types.RollbackAction {
	var actions []types.RollbackAction
	for key, st := range current.Packages {
		if !st.Present {
			continue
		}
		if _, installed := target.Installed(key); installed {
			continue
		}
		actions = append(actions, types.RollbackAction{
			Package:        st.Package,
			Architecture:   st.Architecture,
			Kind:           types.ActionRemoveCompletely,
			CurrentVersion: st.Version,
			Reason:         "package was not installed at the target time",
		})
	}
	return actions
}

// findInstalls finds packages that were installed at the target time but
// are now absent or at a different version. A package removed-but-not-purged
// today still counts as absent: only Present entries match.
func findInstalls(current, target types.PackageSnapshot) []types.RollbackAction {
	var actions []types.RollbackAction
	for key, st := range target.Packages {
		if !st.Present {
			continue
		}
		currentVersion, installed := current.Installed(key)
		if installed && currentVersion == st.Version {
			continue // NoOp, omitted
		}

		reason := "package version changed since the target time"
		if !installed {
			reason = "package was installed at the target time but is gone"
		}
		actions = append(actions, types.RollbackAction{
			Package:        st.Package,
			Architecture:   st.Architecture,
			Kind:           types.ActionInstallVersion,
			TargetVersion:  st.Version,
			CurrentVersion: currentVersion,
			Reason:         reason,
		})
	}
	return actions
}

func sortByKey(actions []types.RollbackAction) {
	sort.Slice(actions, func(i, j int) bool { return actions[i].Key() < actions[j].Key() })
}

// Validate checks plan-level invariants: every action valid on its own and
// no two actions touching the same package.
func Validate(plan []types.RollbackAction) error {
	seen := make(map[string]bool, len(plan))
	for i := range plan {
		if err := plan[i].Validate(); err != nil {
			return err
		}
		key := plan[i].Key()
		if seen[key] {
			return fmt.Errorf("plan proposes two actions for %s", key)
		}
		seen[key] = true
	}
	return nil
}

// Summary condenses a plan for logging and reports.
type Summary struct {
	Installs int `json:"installs"`
	Removes  int `json:"removes"`
}

// Summarize counts the plan's actionable entries by kind.
func Summarize(plan []types.RollbackAction) Summary {
	var s Summary
	for _, a := range plan {
		switch a.Kind {
		case types.ActionInstallVersion:
			s.Installs++
		case types.ActionRemoveCompletely:
			s.Removes++
		}
	}
	return s
}
