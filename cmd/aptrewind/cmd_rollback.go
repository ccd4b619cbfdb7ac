package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgtools/aptrewind/executor"
	"github.com/pkgtools/aptrewind/installer"
	"github.com/pkgtools/aptrewind/journal"
	"github.com/pkgtools/aptrewind/resolver"
	"github.com/pkgtools/aptrewind/telemetry"
)

var (
	rollbackDryRun            bool
	rollbackForce             bool
	rollbackContinueOnFailure bool
	rollbackWorkers           int
	rollbackInclude           []string
	rollbackExclude           []string
)

// rollbackCmd represents the rollback command
var rollbackCmd = &cobra.Command{
	Use:   "rollback <time>",
	Short: "Rewind installed packages to their state at a past time",
	Long: `Rewind the system's package state to what the logs say was
installed at the given moment.

The plan is computed from dpkg and apt logs, gated by the protection
policy, resolved against the historical archive, and then applied with
dpkg. Use --dry-run to stop after resolution and only print the plan.

Exit codes: 0 when everything applied, 1 when the run partially
applied, 2 when nothing was attempted.`,
	Example: `  aptrewind rollback "2026-08-01 09:00:00"        # Full rollback
  aptrewind rollback 2026-08-01 --dry-run          # Plan only
  aptrewind rollback 2026-08-01 --include 'lib*'   # Scope to matching packages
  aptrewind rollback 2026-08-01 --force            # Proceed past unresolvable versions`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)

	rollbackCmd.Flags().BoolVar(&rollbackDryRun, "dry-run", false, "Print the plan without applying it")
	rollbackCmd.Flags().BoolVar(&rollbackForce, "force", false, "Apply what resolved even if some versions are gone from the archive")
	rollbackCmd.Flags().BoolVar(&rollbackContinueOnFailure, "continue-on-failure", true, "Keep applying later actions after one fails")
	rollbackCmd.Flags().IntVar(&rollbackWorkers, "workers", 0, "Concurrent archive lookups (0 uses the default)")
	rollbackCmd.Flags().StringSliceVar(&rollbackInclude, "include", nil, "Only touch packages matching these globs")
	rollbackCmd.Flags().StringSliceVar(&rollbackExclude, "exclude", nil, "Never touch packages matching these globs")
}

func runRollback(cmd *cobra.Command, args []string) error {
	target, err := parseTargetTime(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	if rollbackWorkers > 0 {
		rt.cfg.Workers = rollbackWorkers
	}
	if cmd.Flags().Changed("continue-on-failure") {
		rt.cfg.Rules.ContinueOnFailure = rollbackContinueOnFailure
	}
	if rollbackForce {
		rt.cfg.Rules.Force = true
	}

	rp, _, err := rt.loadHistory(ctx)
	if err != nil {
		return err
	}

	plan, err := rt.buildPlan(ctx, rp, target, rollbackInclude, rollbackExclude)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		printPlan(plan, target)
		return nil
	}

	allowed, vetoed, err := rt.gatePlan(ctx, plan)
	if err != nil {
		return err
	}
	printPlan(allowed, target)
	printVetoed(vetoed)

	arch, closeArchive, err := rt.openArchive()
	if err != nil {
		return err
	}
	defer func() { _ = closeArchive() }()

	resolved, err := rt.resolvePlan(ctx, arch, allowed)
	if err != nil {
		return err
	}

	failed := resolutionFailures(resolved)
	printResolutionFailures(failed)
	if len(failed) > 0 && !rt.cfg.Rules.Force {
		return fmt.Errorf("%d of %d actions cannot be resolved; re-run with --force to apply the rest", len(failed), len(resolved))
	}

	if rollbackDryRun {
		fmt.Println("Dry run: no packages were touched.")
		if len(failed) > 0 {
			return errPartial
		}
		return nil
	}

	downloadDir, err := ensureDownloadDir(rt.cfg.DownloadDir, target)
	if err != nil {
		return err
	}
	res := resolver.New(arch, rt.logger.Logger, resolver.Options{Workers: rt.cfg.Workers})
	if err := res.Prefetch(ctx, resolved, downloadDir); err != nil {
		return err
	}

	var jrnl *journal.Journal
	if rt.cfg.JournalDir != "" {
		jrnl, err = journal.Open(rt.cfg.JournalDir)
		if err != nil {
			return err
		}
		defer func() { _ = jrnl.Close() }()
	}

	engine := executor.NewEngine(installer.NewDpkg(), jrnl, rt.logger.Logger, executor.Options{
		ContinueOnFailure: rt.cfg.Rules.ContinueOnFailure,
	})
	result, err := engine.Execute(ctx, resolved)
	if result != nil {
		telemetry.ActionsApplied.Add(ctx, int64(result.AppliedCount))
		telemetry.ActionsFailed.Add(ctx, int64(result.FailedCount))
		rt.logger.LogExecuteComplete(ctx, result.AppliedCount, result.FailedCount, result.SkippedCount)
		printExecution(result)
	}
	if err != nil {
		return err
	}

	if result.PartialFailure || result.SkippedCount > 0 {
		return errPartial
	}
	return nil
}

func ensureDownloadDir(configured string, target time.Time) (string, error) {
	if configured != "" {
		if err := os.MkdirAll(configured, 0o750); err != nil {
			return "", fmt.Errorf("failed to create download dir: %w", err)
		}
		return configured, nil
	}
	dir, err := os.MkdirTemp("", "aptrewind-"+target.Format("20060102-150405")+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create download dir: %w", err)
	}
	return dir, nil
}

func printExecution(result *executor.ExecutionResult) {
	fmt.Printf("Applied %d, failed %d, skipped %d (took %s)\n",
		result.AppliedCount, result.FailedCount, result.SkippedCount, result.Duration.Round(time.Millisecond))
	for _, r := range result.Results {
		switch r.Status {
		case executor.StatusFailed:
			fmt.Printf("  FAILED  %s: %s\n", r.Action.Key(), r.Error)
		case executor.StatusSkipped:
			fmt.Printf("  skipped %s: %s\n", r.Action.Key(), r.SkipReason)
		}
	}
}
