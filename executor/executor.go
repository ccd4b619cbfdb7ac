// Package executor submits resolved rollback plans to the system installer.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkgtools/aptrewind/installer"
	"github.com/pkgtools/aptrewind/journal"
	"github.com/pkgtools/aptrewind/types"
)

// Engine applies a resolved plan one action at a time. The system installer
// is not reentrant, so Execute holds a mutex for the whole run: one plan in
// flight process-wide.
type Engine struct {
	installer installer.Installer
	journal   *journal.Journal
	options   Options
	logger    zerolog.Logger
	mu        sync.Mutex
}

// NewEngine creates an executor engine. The journal may be nil, in which
// case no audit trail is written.
func NewEngine(inst installer.Installer, jrnl *journal.Journal, logger zerolog.Logger, options Options) *Engine {
	return &Engine{installer: inst, journal: jrnl, options: options, logger: logger}
}

// Execute applies every actionable entry of the plan in plan order,
// collecting per-action results. Actions whose resolution failed are
// skipped and reported, never silently dropped. A cancelled context stops
// issuing new installs; the in-flight one finishes.
func (e *Engine) Execute(ctx context.Context, plan []types.ResolvedAction) (*ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &ExecutionResult{
		StartTime:    time.Now(),
		TotalActions: len(plan),
		Results:      make([]ActionResult, 0, len(plan)),
	}

	halted := false
	for _, action := range plan {
		if halted {
			result.Results = append(result.Results, e.skip(action, "previous action failed"))
			result.SkippedCount++
			continue
		}
		if ctx.Err() != nil {
			result.Results = append(result.Results, e.skip(action, "run cancelled"))
			result.SkippedCount++
			continue
		}

		single := e.executeSingle(ctx, action)
		result.Results = append(result.Results, single)

		switch single.Status {
		case StatusSuccess:
			result.AppliedCount++
		case StatusFailed:
			result.FailedCount++
			if !e.options.ContinueOnFailure {
				halted = true
			}
		case StatusSkipped:
			result.SkippedCount++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.PartialFailure = result.FailedCount > 0

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

func (e *Engine) executeSingle(ctx context.Context, action types.ResolvedAction) ActionResult {
	if !action.IsActionable() {
		return e.skip(action, "nothing to do")
	}
	if !action.Resolved() {
		reason := "unresolved action"
		if action.Failure != nil {
			reason = action.Failure.Reason
		}
		return e.skip(action, reason)
	}

	start := time.Now()
	e.journalAppend(journal.EntryApplying, action, nil)
	e.logger.Info().
		Str("package", action.Key()).
		Str("kind", string(action.Kind)).
		Str("target_version", action.TargetVersion).
		Msg("applying action")

	if err := e.installer.Apply(ctx, action); err != nil {
		e.journalAppend(journal.EntryFailed, action, err)
		e.logger.Error().Err(err).Str("package", action.Key()).Msg("action failed")
		return ActionResult{
			Action:   action,
			Status:   StatusFailed,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	e.journalAppend(journal.EntryApplied, action, nil)
	return ActionResult{Action: action, Status: StatusSuccess, Duration: time.Since(start)}
}

func (e *Engine) skip(action types.ResolvedAction, reason string) ActionResult {
	if action.IsActionable() {
		e.journalAppend(journal.EntrySkipped, action, nil)
	}
	return ActionResult{Action: action, Status: StatusSkipped, SkipReason: reason}
}

func (e *Engine) journalAppend(entryType journal.EntryType, action types.ResolvedAction, cause error) {
	if e.journal == nil {
		return
	}
	var err error
	if cause != nil {
		err = e.journal.AppendError(entryType, action.Key(), action, cause)
	} else {
		err = e.journal.Append(entryType, action.Key(), action)
	}
	if err != nil {
		// The action outcome matters more than its audit record.
		e.logger.Warn().Err(err).Str("package", action.Key()).Msg("journal write failed")
	}
}
