package executor

import (
	"time"

	"github.com/pkgtools/aptrewind/types"
)

// ExecutionStatus tracks the status of one applied action
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
	StatusSkipped ExecutionStatus = "skipped"
)

// ActionResult is the outcome of applying a single action.
type ActionResult struct {
	Action     types.ResolvedAction `json:"action"`
	Status     ExecutionStatus      `json:"status"`
	Error      string               `json:"error,omitempty"`
	SkipReason string               `json:"skip_reason,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// ExecutionResult is the outcome of applying a whole plan.
type ExecutionResult struct {
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	Duration       time.Duration  `json:"duration"`
	TotalActions   int            `json:"total_actions"`
	AppliedCount   int            `json:"applied_count"`
	FailedCount    int            `json:"failed_count"`
	SkippedCount   int            `json:"skipped_count"`
	Results        []ActionResult `json:"results"`
	PartialFailure bool           `json:"partial_failure"`
}

// Options configure executor behavior. Continuing past failures is a
// policy decision, not an invariant, so it is a flag.
type Options struct {
	// ContinueOnFailure keeps applying remaining actions after one fails
	// (best-effort rollback). When false the first failure halts the run.
	ContinueOnFailure bool `json:"continue_on_failure"`
}
