package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkgtools/aptrewind/archive"
	"github.com/pkgtools/aptrewind/config"
	"github.com/pkgtools/aptrewind/dpkglog"
	"github.com/pkgtools/aptrewind/internal/filter"
	"github.com/pkgtools/aptrewind/planner"
	"github.com/pkgtools/aptrewind/policy"
	"github.com/pkgtools/aptrewind/replay"
	"github.com/pkgtools/aptrewind/resolver"
	"github.com/pkgtools/aptrewind/telemetry"
	"github.com/pkgtools/aptrewind/types"
)

// timeLayouts are the accepted target-time formats, tried in order. Times
// without a zone are interpreted in the machine's local zone, matching how
// dpkg writes its log.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

func parseTargetTime(arg string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, arg, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want e.g. \"2006-01-02 15:04:05\")", arg)
}

// runtimeSetup is everything a subcommand needs before the pipeline starts.
type runtimeSetup struct {
	cfg      *config.Config
	logger   *telemetry.Logger
	shutdown func(context.Context) error
}

// setup loads configuration, applies flag overrides, and starts telemetry.
func setup(ctx context.Context) (*runtimeSetup, error) {
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagLogDir != "" {
		cfg.LogDir = flagLogDir
	}
	if flagArchiveURL != "" {
		cfg.ArchiveURL = flagArchiveURL
	}

	logger := telemetry.NewLogger("aptrewind")

	shutdown, err := telemetry.InitOTEL(ctx, telemetry.Config{
		ServiceName:    "aptrewind",
		ServiceVersion: version,
		Insecure:       true,
	})
	if err != nil {
		// Telemetry is best effort for a local CLI
		logger.Debug().Err(err).Msg("telemetry disabled")
		shutdown = func(context.Context) error { return nil }
	}

	return &runtimeSetup{cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (r *runtimeSetup) close(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.shutdown(flushCtx); err != nil {
		r.logger.Debug().Err(err).Msg("telemetry flush failed")
	}
}

// loadHistory discovers and parses every log source under the log dir.
func (r *runtimeSetup) loadHistory(ctx context.Context) (*replay.Replayer, *dpkglog.Result, error) {
	sources, err := dpkglog.DiscoverSources(r.cfg.LogDir)
	if err != nil {
		return nil, nil, err
	}

	result, err := dpkglog.Parse(sources)
	if err != nil {
		return nil, nil, err
	}

	telemetry.EventsParsed.Add(ctx, int64(len(result.Events)))
	telemetry.ParseWarnings.Add(ctx, int64(len(result.Warnings)))
	for _, w := range result.Warnings {
		r.logger.Warn().
			Str("source", w.Source).
			Int("line", w.Line).
			Str("reason", w.Reason).
			Msg("skipped malformed log line")
	}
	r.logger.LogParseComplete(ctx, len(result.Events), len(result.Warnings))

	if len(result.Events) == 0 {
		return nil, nil, fmt.Errorf("no package events found in %s", r.cfg.LogDir)
	}

	return replay.New(result.Events), result, nil
}

// buildPlan replays both snapshots and diffs them into a rollback plan.
func (r *runtimeSetup) buildPlan(ctx context.Context, rp *replay.Replayer, target time.Time, include, exclude []string) ([]types.RollbackAction, error) {
	now := time.Now()
	if target.After(now) {
		return nil, fmt.Errorf("target time %s is in the future", target.Format("2006-01-02 15:04:05"))
	}
	if earliest, ok := rp.EarliestTimestamp(); ok && target.Before(earliest) {
		return nil, fmt.Errorf("target time %s predates the oldest log entry (%s); older logs have been rotated away",
			target.Format("2006-01-02 15:04:05"), earliest.Format("2006-01-02 15:04:05"))
	}

	f, err := filter.New(include, exclude)
	if err != nil {
		return nil, err
	}

	current := f.FilterSnapshot(rp.At(now))
	past := f.FilterSnapshot(rp.At(target))

	plan := planner.Diff(current, past)
	if err := planner.Validate(plan); err != nil {
		return nil, err
	}

	summary := planner.Summarize(plan)
	telemetry.ActionsPlanned.Add(ctx, int64(len(plan)))
	r.logger.LogPlanBuilt(ctx, summary.Installs, summary.Removes)

	return plan, nil
}

// gatePlan applies the protection policy, returning the permitted actions.
func (r *runtimeSetup) gatePlan(ctx context.Context, plan []types.RollbackAction) ([]types.RollbackAction, []policy.Vetoed, error) {
	engine := policy.NewEngine(r.logger.Logger, r.cfg.Protected)
	if err := engine.LoadDefault(ctx); err != nil {
		return nil, nil, err
	}
	if r.cfg.PolicyDir != "" {
		if err := engine.LoadDir(ctx, r.cfg.PolicyDir); err != nil {
			return nil, nil, err
		}
	}
	return engine.FilterPlan(ctx, plan)
}

// openArchive builds the archive client, wrapped in the lookup cache when
// one is configured. The returned closer is never nil.
func (r *runtimeSetup) openArchive() (archive.Archive, func() error, error) {
	var arch archive.Archive = archive.NewSnapshotClient(r.cfg.ArchiveURL)
	closer := func() error { return nil }

	if r.cfg.CachePath != "" {
		cache, err := archive.NewCache(r.cfg.CachePath, arch)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open lookup cache: %w", err)
		}
		arch = cache
		closer = cache.Close
	}
	return arch, closer, nil
}

// resolvePlan looks every install up in the archive.
func (r *runtimeSetup) resolvePlan(ctx context.Context, arch archive.Archive, plan []types.RollbackAction) ([]types.ResolvedAction, error) {
	res := resolver.New(arch, r.logger.Logger, resolver.Options{Workers: r.cfg.Workers})
	resolved, err := res.ResolvePlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	ok, failed := 0, 0
	for i := range resolved {
		if resolved[i].Failure != nil {
			failed++
		} else {
			ok++
		}
	}
	telemetry.ActionsResolved.Add(ctx, int64(ok))
	r.logger.LogResolveComplete(ctx, ok, failed)

	return resolved, nil
}

func resolutionFailures(resolved []types.ResolvedAction) []types.ResolvedAction {
	var failed []types.ResolvedAction
	for i := range resolved {
		if resolved[i].Failure != nil {
			failed = append(failed, resolved[i])
		}
	}
	return failed
}

// printPlan writes the plan as a table on stdout.
func printPlan(plan []types.RollbackAction, target time.Time) {
	if len(plan) == 0 {
		fmt.Printf("Nothing to do: package state already matches %s\n", target.Format("2006-01-02 15:04:05"))
		return
	}

	fmt.Printf("Rollback plan for %s (%d actions):\n\n", target.Format("2006-01-02 15:04:05"), len(plan))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tPACKAGE\tCURRENT\tTARGET\tREASON")
	for _, a := range plan {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			actionLabel(a.Kind), a.Key(),
			orDash(a.CurrentVersion), orDash(a.TargetVersion), a.Reason)
	}
	_ = w.Flush()
	fmt.Println()
}

func printVetoed(vetoed []policy.Vetoed) {
	if len(vetoed) == 0 {
		return
	}
	fmt.Printf("Blocked by policy (%d):\n", len(vetoed))
	for _, v := range vetoed {
		fmt.Printf("  %s: %s\n", v.Action.Key(), strings.Join(v.Reasons, "; "))
	}
	fmt.Println()
}

func printResolutionFailures(failed []types.ResolvedAction) {
	if len(failed) == 0 {
		return
	}
	fmt.Printf("Unresolvable in the archive (%d):\n", len(failed))
	for _, a := range failed {
		fmt.Printf("  %s %s: %s\n", a.Key(), a.TargetVersion, a.Failure.Reason)
	}
	fmt.Println()
}

func actionLabel(kind types.ActionKind) string {
	switch kind {
	case types.ActionInstallVersion:
		return "install"
	case types.ActionRemoveCompletely:
		return "remove"
	default:
		return string(kind)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
