package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	planResolve bool
	planOutput  string
	planInclude []string
	planExclude []string
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan <time>",
	Short: "Show what a rollback to the given time would do",
	Long: `Compute the rollback plan for the given time without applying
anything and without needing root.

Each install is also looked up in the historical archive, so you can
see up front which versions are still retrievable; pass --resolve=false
to stay fully offline.`,
	Example: `  aptrewind plan "2026-08-01 09:00:00"
  aptrewind plan 2026-08-01 --resolve=false
  aptrewind plan 2026-08-01 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().BoolVar(&planResolve, "resolve", true, "Look each install up in the archive")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "table", "Output format: table, json")
	planCmd.Flags().StringSliceVar(&planInclude, "include", nil, "Only consider packages matching these globs")
	planCmd.Flags().StringSliceVar(&planExclude, "exclude", nil, "Ignore packages matching these globs")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planOutput != "table" && planOutput != "json" {
		return fmt.Errorf("invalid output format: %s (must be table or json)", planOutput)
	}

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

	rp, _, err := rt.loadHistory(ctx)
	if err != nil {
		return err
	}

	plan, err := rt.buildPlan(ctx, rp, target, planInclude, planExclude)
	if err != nil {
		return err
	}

	allowed, vetoed, err := rt.gatePlan(ctx, plan)
	if err != nil {
		return err
	}

	if planOutput == "json" {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"target":  target,
			"actions": allowed,
			"vetoed":  vetoed,
		})
	}

	printPlan(allowed, target)
	printVetoed(vetoed)

	if !planResolve || len(allowed) == 0 {
		return nil
	}

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
	if len(failed) == 0 {
		fmt.Println("All target versions are retrievable from the archive.")
	}
	return nil
}
