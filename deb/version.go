// Package deb provides Debian version ordering helpers.
package deb

import (
	"strings"

	version "github.com/knqyf263/go-deb-version"
)

// CompareVersions orders two Debian version strings per dpkg rules,
// returning -1, 0 or 1. Strings that fail to parse fall back to plain
// lexical comparison so classification never errors out mid-parse.
func CompareVersions(a, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	switch {
	case va.LessThan(vb):
		return -1
	case va.GreaterThan(vb):
		return 1
	default:
		return 0
	}
}

// Valid reports whether s parses as a Debian version string.
func Valid(s string) bool {
	_, err := version.NewVersion(s)
	return err == nil
}
