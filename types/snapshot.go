package types

import (
	"sort"
	"time"
)

// PackageState is one package's entry in a snapshot. A removed package keeps
// its last known version for display and diffing; a purged package does not.
type PackageState struct {
	Package      string `json:"package"`
	Architecture string `json:"architecture"`
	Version      string `json:"version,omitempty"`
	Present      bool   `json:"present"`
}

// Key returns the name:arch identity for the state.
func (s PackageState) Key() string {
	if s.Architecture == "" {
		return s.Package
	}
	return s.Package + ":" + s.Architecture
}

// PackageSnapshot maps package identity (name:arch) to its state at a
// specific instant. Derived by replaying events up to AsOf; never mutated
// after construction.
type PackageSnapshot struct {
	AsOf     time.Time               `json:"as_of"`
	Packages map[string]PackageState `json:"packages"`
}

// NewSnapshot returns an empty snapshot for the given instant.
func NewSnapshot(asOf time.Time) PackageSnapshot {
	return PackageSnapshot{AsOf: asOf, Packages: make(map[string]PackageState)}
}

// Installed reports whether the package is present, and at which version.
func (s PackageSnapshot) Installed(key string) (string, bool) {
	st, ok := s.Packages[key]
	if !ok || !st.Present {
		return "", false
	}
	return st.Version, true
}

// PresentCount returns the number of installed packages in the snapshot.
func (s PackageSnapshot) PresentCount() int {
	n := 0
	for _, st := range s.Packages {
		if st.Present {
			n++
		}
	}
	return n
}

// Keys returns all package identities in the snapshot, sorted.
func (s PackageSnapshot) Keys() []string {
	keys := make([]string, 0, len(s.Packages))
	for k := range s.Packages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
