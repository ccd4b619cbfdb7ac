// Package resolver locates historical artifacts for rollback actions.
package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pkgtools/aptrewind/archive"
	"github.com/pkgtools/aptrewind/types"
)

const defaultWorkers = 8

// Resolver resolves InstallVersion actions to retrievable artifacts through
// the archive capability. Lookups are independent per package, so they run
// on a bounded worker pool; resolution is a pure function of (name, version,
// arch) and the pool order never changes the outcome.
type Resolver struct {
	archive archive.Archive
	workers int
	logger  zerolog.Logger
}

// Options configure resolver behavior.
type Options struct {
	// Workers bounds concurrent archive lookups. Zero means the default.
	Workers int
}

// New creates a Resolver over the given archive.
func New(a archive.Archive, logger zerolog.Logger, opts Options) *Resolver {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Resolver{archive: a, workers: workers, logger: logger}
}

// ResolvePlan resolves every action in the plan, preserving plan order in
// the result. Actions that cannot be resolved carry a ResolutionFailure and
// stay in the plan; they are never silently dropped. When ctx is cancelled
// no new lookups are issued, in-flight ones finish, and ctx.Err is returned
// alongside the partial result.
func (r *Resolver) ResolvePlan(ctx context.Context, plan []types.RollbackAction) ([]types.ResolvedAction, error) {
	resolved := make([]types.ResolvedAction, len(plan))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				resolved[i] = r.Resolve(ctx, plan[i])
			}
		}()
	}

	var cancelled bool
dispatch:
	for i := range plan {
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		for i := range resolved {
			if resolved[i].Package == "" {
				resolved[i] = cancelledAction(plan[i])
			}
		}
		return resolved, ctx.Err()
	}
	return resolved, nil
}

// Resolve resolves a single action. RemoveCompletely and NoOp need no
// network lookup and resolve trivially.
func (r *Resolver) Resolve(ctx context.Context, action types.RollbackAction) types.ResolvedAction {
	if action.Kind != types.ActionInstallVersion {
		return types.ResolvedAction{RollbackAction: action}
	}

	refs, err := r.archive.Lookup(ctx, action.Package, action.TargetVersion, action.Architecture)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("package", action.Key()).
			Str("version", action.TargetVersion).
			Msg("archive lookup failed")
		return types.ResolvedAction{
			RollbackAction: action,
			Failure:        &types.ResolutionFailure{Reason: fmt.Sprintf("archive lookup failed: %v", err)},
		}
	}
	if len(refs) == 0 {
		return types.ResolvedAction{
			RollbackAction: action,
			Failure:        &types.ResolutionFailure{Reason: "no artifact in archive for this version"},
		}
	}

	// First usable candidate wins; the rest stay around as fallbacks.
	return types.ResolvedAction{
		RollbackAction: action,
		Artifact:       &refs[0],
		Fallbacks:      refs[1:],
	}
}

// Prefetch downloads the artifact for every resolved install into destDir,
// in parallel, trying fallback locations when the primary is gone. Download
// failures downgrade the action to a ResolutionFailure so the executor
// skips it and the report explains why.
func (r *Resolver) Prefetch(ctx context.Context, resolved []types.ResolvedAction, destDir string) error {
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r.prefetchOne(ctx, &resolved[i], destDir)
			}
		}()
	}

	var cancelled bool
dispatch:
	for i := range resolved {
		if !resolved[i].Resolved() || resolved[i].Kind != types.ActionInstallVersion {
			continue
		}
		select {
		case <-ctx.Done():
			cancelled = true
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		return ctx.Err()
	}
	return nil
}

func (r *Resolver) prefetchOne(ctx context.Context, action *types.ResolvedAction, destDir string) {
	candidates := append([]types.ArtifactRef{*action.Artifact}, action.Fallbacks...)

	var lastErr error
	for _, ref := range candidates {
		path, err := r.archive.Fetch(ctx, ref, destDir)
		if err == nil {
			action.LocalPath = path
			return
		}
		lastErr = err
		r.logger.Warn().
			Err(err).
			Str("package", action.Key()).
			Str("url", ref.URL).
			Msg("artifact fetch failed, trying fallback")
	}

	action.Artifact = nil
	action.Failure = &types.ResolutionFailure{
		Reason: fmt.Sprintf("all candidate artifacts failed to download: %v", lastErr),
	}
}

func cancelledAction(action types.RollbackAction) types.ResolvedAction {
	ra := types.ResolvedAction{RollbackAction: action}
	if action.Kind == types.ActionInstallVersion {
		ra.Failure = &types.ResolutionFailure{Reason: "resolution cancelled"}
	}
	return ra
}
