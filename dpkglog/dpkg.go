package dpkglog

import (
	"strings"
	"time"

	"github.com/pkgtools/aptrewind/deb"
	"github.com/pkgtools/aptrewind/types"
)

const dpkgTimeLayout = "2006-01-02 15:04:05"

// noneVersion is dpkg's marker for "no version on this side of the
// transition" (fresh install, completed removal).
const noneVersion = "<none>"

// Status words that carry replay semantics. All other status words
// (unpacked, half-installed, config-files, ...) are dpkg bookkeeping with
// no effect on the installed set and are skipped without a warning.
var dpkgStatusKinds = map[string]types.EventKind{
	"half-configured":  types.EventConfigureHalf,
	"installed":        types.EventConfigureFull,
	"triggers-pending": types.EventTriggersPending,
}

var dpkgSkippedStatuses = map[string]bool{
	"unpacked":         true,
	"half-installed":   true,
	"config-files":     true,
	"not-installed":    true,
	"triggers-awaited": true,
}

// parseDpkgLine parses one dpkg.log line. It returns (nil, true) for known
// lines that carry no package event, and (nil, false) for lines matching no
// grammar, which the caller records as a ParseWarning.
func parseDpkgLine(line string) (*types.PackageEvent, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, false
	}

	ts, err := time.ParseInLocation(dpkgTimeLayout, fields[0]+" "+fields[1], time.Local)
	if err != nil {
		return nil, false
	}

	switch fields[2] {
	case "startup", "conffile":
		return nil, true
	case "status":
		return parseDpkgStatus(ts, fields)
	case "install", "upgrade", "remove", "purge", "trigproc", "configure":
		return parseDpkgAction(ts, fields)
	default:
		return nil, false
	}
}

// parseDpkgStatus handles "status <state> pkg:arch version" lines.
func parseDpkgStatus(ts time.Time, fields []string) (*types.PackageEvent, bool) {
	if len(fields) < 6 {
		return nil, false
	}
	state := fields[3]

	if dpkgSkippedStatuses[state] {
		return nil, true
	}
	kind, ok := dpkgStatusKinds[state]
	if !ok {
		return nil, false
	}

	name, arch := splitPackageArch(fields[4])
	return &types.PackageEvent{
		Timestamp:    ts,
		Package:      name,
		Architecture: arch,
		Kind:         kind,
		VersionAfter: fields[5],
		RawStatus:    state,
	}, true
}

// parseDpkgAction handles "<action> pkg:arch from to" lines.
func parseDpkgAction(ts time.Time, fields []string) (*types.PackageEvent, bool) {
	if len(fields) < 5 {
		return nil, false
	}
	name, arch := splitPackageArch(fields[3])
	before := versionOrEmpty(fields[4])
	after := ""
	if len(fields) > 5 {
		after = versionOrEmpty(fields[5])
	}

	ev := types.PackageEvent{
		Timestamp:     ts,
		Package:       name,
		Architecture:  arch,
		VersionBefore: before,
		VersionAfter:  after,
		RawStatus:     fields[2],
	}

	switch fields[2] {
	case "install":
		ev.Kind = types.EventInstall
	case "upgrade":
		// dpkg logs version changes in both directions as "upgrade";
		// the version ordering tells them apart.
		if deb.CompareVersions(after, before) < 0 {
			ev.Kind = types.EventDowngrade
		} else {
			ev.Kind = types.EventUpgrade
		}
	case "remove":
		ev.Kind = types.EventRemove
	case "purge":
		ev.Kind = types.EventPurge
	case "trigproc":
		ev.Kind = types.EventTriggersPending
		ev.VersionAfter = before
		ev.VersionBefore = ""
	case "configure":
		// "configure pkg:arch version decision": the version being
		// configured sits in the before slot.
		ev.Kind = types.EventConfigureHalf
		ev.VersionAfter = before
		ev.VersionBefore = ""
	}
	return &ev, true
}

func splitPackageArch(s string) (string, string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func versionOrEmpty(s string) string {
	if s == noneVersion {
		return ""
	}
	return s
}
