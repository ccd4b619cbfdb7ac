package dpkglog

import (
	"strings"
	"time"

	"github.com/pkgtools/aptrewind/types"
)

// apt writes two spaces between date and time in Start-Date headers.
const aptTimeLayout = "2006-01-02  15:04:05"

var aptActionKinds = map[string]types.EventKind{
	"Install":   types.EventInstall,
	"Reinstall": types.EventInstall,
	"Upgrade":   types.EventUpgrade,
	"Downgrade": types.EventDowngrade,
	"Remove":    types.EventRemove,
	"Purge":     types.EventPurge,
}

// Header lines inside a transaction block that carry no package events.
var aptSkippedHeaders = map[string]bool{
	"Commandline":  true,
	"Requested-By": true,
	"End-Date":     true,
	"Error":        true,
}

// historyBlock is one apt transaction: everything between a Start-Date
// header and the matching End-Date.
type historyBlock struct {
	start     time.Time
	lines     []string
	startLine int
}

// parseHistoryBlock expands one transaction block into events, all stamped
// with the transaction's Start-Date. Unrecognized lines inside the block are
// reported back as warnings via the returned bad line indices.
func parseHistoryBlock(b historyBlock) ([]types.PackageEvent, []int) {
	var events []types.PackageEvent
	var badLines []int

	for i, line := range b.lines {
		header, rest, ok := strings.Cut(line, ": ")
		if !ok {
			badLines = append(badLines, b.startLine+i)
			continue
		}
		if aptSkippedHeaders[header] {
			continue
		}
		kind, ok := aptActionKinds[header]
		if !ok {
			badLines = append(badLines, b.startLine+i)
			continue
		}
		for _, item := range splitHistoryItems(rest) {
			ev, ok := parseHistoryItem(b.start, kind, item)
			if !ok {
				badLines = append(badLines, b.startLine+i)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, badLines
}

// splitHistoryItems splits "foo:amd64 (1.0), bar:amd64 (2.0, automatic)"
// into per-package items. Commas inside parentheses do not split.
func splitHistoryItems(s string) []string {
	var items []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				items = append(items, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		items = append(items, tail)
	}
	return items
}

// parseHistoryItem parses one "name:arch (versions...)" item.
func parseHistoryItem(ts time.Time, kind types.EventKind, item string) (types.PackageEvent, bool) {
	open := strings.IndexByte(item, '(')
	closing := strings.LastIndexByte(item, ')')
	if open < 0 || closing < open {
		return types.PackageEvent{}, false
	}

	name, arch := splitPackageArch(strings.TrimSpace(item[:open]))
	if name == "" {
		return types.PackageEvent{}, false
	}

	parts := strings.Split(item[open+1:closing], ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	// Trailing "automatic" marks apt-chosen dependencies; not a version.
	if n := len(parts); n > 0 && parts[n-1] == "automatic" {
		parts = parts[:n-1]
	}

	ev := types.PackageEvent{
		Timestamp:    ts,
		Package:      name,
		Architecture: arch,
		Kind:         kind,
		RawStatus:    string(kind),
	}

	switch kind {
	case types.EventUpgrade, types.EventDowngrade:
		if len(parts) != 2 {
			return types.PackageEvent{}, false
		}
		ev.VersionBefore, ev.VersionAfter = parts[0], parts[1]
	case types.EventInstall:
		if len(parts) != 1 {
			return types.PackageEvent{}, false
		}
		ev.VersionAfter = parts[0]
	case types.EventRemove, types.EventPurge:
		if len(parts) != 1 {
			return types.PackageEvent{}, false
		}
		ev.VersionBefore = parts[0]
	default:
		return types.PackageEvent{}, false
	}
	return ev, true
}
