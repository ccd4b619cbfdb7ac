package types

import "fmt"

// ActionKind classifies one step of a rollback plan
type ActionKind string

const (
	ActionInstallVersion   ActionKind = "install-version"
	ActionRemoveCompletely ActionKind = "remove-completely"
	ActionNoOp             ActionKind = "noop"
)

// RollbackAction is one step of the plan produced by the differ.
type RollbackAction struct {
	Package        string     `json:"package"`
	Architecture   string     `json:"architecture"`
	Kind           ActionKind `json:"kind"`
	TargetVersion  string     `json:"target_version,omitempty"`
	CurrentVersion string     `json:"current_version,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// Key returns the name:arch identity the action operates on.
func (a RollbackAction) Key() string {
	if a.Architecture == "" {
		return a.Package
	}
	return a.Package + ":" + a.Architecture
}

// Validate ensures the action is internally consistent.
func (a *RollbackAction) Validate() error {
	if a.Package == "" {
		return fmt.Errorf("action package cannot be empty")
	}
	switch a.Kind {
	case ActionInstallVersion:
		if a.TargetVersion == "" {
			return fmt.Errorf("install action for %s has no target version", a.Key())
		}
	case ActionRemoveCompletely, ActionNoOp:
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

// IsActionable reports whether the action changes system state.
func (a RollbackAction) IsActionable() bool {
	return a.Kind == ActionInstallVersion || a.Kind == ActionRemoveCompletely
}

// ArtifactRef is an opaque locator for one historical package build in the
// remote archive.
type ArtifactRef struct {
	URL      string `json:"url"`
	Hash     string `json:"hash,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Archive  string `json:"archive,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ResolutionFailure explains why no artifact could be located for an action.
type ResolutionFailure struct {
	Reason string `json:"reason"`
}

// ResolvedAction is a RollbackAction augmented with the artifact located for
// it, or a ResolutionFailure if none could be found. Failed resolutions stay
// in the plan so an incomplete rollback is always visible to the operator.
type ResolvedAction struct {
	RollbackAction
	Artifact  *ArtifactRef       `json:"artifact,omitempty"`
	Fallbacks []ArtifactRef      `json:"fallbacks,omitempty"`
	Failure   *ResolutionFailure `json:"failure,omitempty"`
	LocalPath string             `json:"local_path,omitempty"`
}

// Resolved reports whether the action has a usable artifact, or needs none.
func (r ResolvedAction) Resolved() bool {
	if r.Kind != ActionInstallVersion {
		return true
	}
	return r.Failure == nil && r.Artifact != nil
}
