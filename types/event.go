package types

import "time"

// EventKind classifies one package state transition from the logs
type EventKind string

const (
	EventInstall         EventKind = "install"
	EventUpgrade         EventKind = "upgrade"
	EventDowngrade       EventKind = "downgrade"
	EventRemove          EventKind = "remove"
	EventPurge           EventKind = "purge"
	EventConfigureHalf   EventKind = "half-configured"
	EventConfigureFull   EventKind = "installed"
	EventTriggersPending EventKind = "triggers-pending"
	EventUnknown         EventKind = "unknown"
)

// PackageEvent is one historical fact extracted from a package-manager log.
// Immutable once parsed. Ordering key is (Timestamp, SourcePriority, Sequence)
// so that same-second events from overlapping logs replay deterministically.
type PackageEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	Package        string    `json:"package"`
	Architecture   string    `json:"architecture"`
	Kind           EventKind `json:"kind"`
	VersionBefore  string    `json:"version_before,omitempty"`
	VersionAfter   string    `json:"version_after,omitempty"`
	RawStatus      string    `json:"raw_status,omitempty"`
	SourcePriority int       `json:"source_priority"`
	Sequence       int64     `json:"sequence"`
}

// Key returns the package identity used throughout the pipeline.
// dpkg logs always qualify packages with their architecture.
func (e PackageEvent) Key() string {
	if e.Architecture == "" {
		return e.Package
	}
	return e.Package + ":" + e.Architecture
}

// Before reports whether e orders strictly before other in replay order.
func (e PackageEvent) Before(other PackageEvent) bool {
	if !e.Timestamp.Equal(other.Timestamp) {
		return e.Timestamp.Before(other.Timestamp)
	}
	if e.SourcePriority != other.SourcePriority {
		return e.SourcePriority < other.SourcePriority
	}
	return e.Sequence < other.Sequence
}

// MutatesState reports whether the event changes the installed set when
// replayed. Bookkeeping states and unknown lines do not.
func (e PackageEvent) MutatesState() bool {
	switch e.Kind {
	case EventConfigureHalf, EventTriggersPending, EventUnknown:
		return false
	default:
		return true
	}
}

// ParseWarning records a log line that matched no known grammar.
// Warnings are accumulated and reported, never fatal.
type ParseWarning struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}
