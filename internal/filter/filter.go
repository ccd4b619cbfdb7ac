// Package filter narrows rollback scope to a subset of packages.
package filter

import (
	"fmt"
	"path"

	"github.com/pkgtools/aptrewind/types"
)

// Filter controls which packages a rollback may touch. Patterns are
// shell-style globs matched against the bare package name, without the
// architecture qualifier.
type Filter struct {
	include []string
	exclude []string
}

// New creates a Filter from include and exclude glob patterns. Patterns are
// validated up front so a typo fails the run instead of silently matching
// nothing.
func New(include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if _, err := path.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", p, err)
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// ShouldInclude returns true if the package passes the filter.
func (f *Filter) ShouldInclude(name string) bool {
	// Include patterns (whitelist) - ANY must match
	if len(f.include) > 0 {
		matched := false
		for _, p := range f.include {
			if ok, _ := path.Match(p, name); ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	// Exclude patterns (blacklist) - ANY match excludes
	for _, p := range f.exclude {
		if ok, _ := path.Match(p, name); ok {
			return false
		}
	}

	return true
}

// FilterSnapshot returns a snapshot holding only packages that pass the
// filter. The input snapshot is not modified.
func (f *Filter) FilterSnapshot(snap types.PackageSnapshot) types.PackageSnapshot {
	if f.IsEmpty() {
		return snap
	}

	filtered := types.NewSnapshot(snap.AsOf)
	for key, state := range snap.Packages {
		if f.ShouldInclude(state.Package) {
			filtered.Packages[key] = state
		}
	}
	return filtered
}

// IsEmpty returns true if no patterns are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}
