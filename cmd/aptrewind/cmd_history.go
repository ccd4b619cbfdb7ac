package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkgtools/aptrewind/types"
)

var (
	historyAt      string
	historySince   string
	historyUntil   string
	historyPackage string
	historyLimit   int
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the package operation history parsed from the logs",
	Long: `List every package operation reconstructed from dpkg and apt
logs, oldest first, the same event stream rollbacks replay.

With --at the event list is replaced by the reconstructed snapshot:
every package the logs say was installed at that moment.`,
	Example: `  aptrewind history                          # Everything the logs remember
  aptrewind history --since 2026-08-01        # Events from a date on
  aptrewind history --package htop            # One package's story
  aptrewind history --at "2026-08-01 09:00"   # What was installed then`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyAt, "at", "", "Print the reconstructed snapshot at this time instead of events")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only events at or after this time")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Only events up to this time")
	historyCmd.Flags().StringVar(&historyPackage, "package", "", "Only events for this package name")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Show only the most recent N matching events")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	rp, result, err := rt.loadHistory(ctx)
	if err != nil {
		return err
	}

	if historyAt != "" {
		at, err := parseTargetTime(historyAt)
		if err != nil {
			return err
		}
		return printSnapshot(rp.At(at))
	}

	events, err := filterEvents(result.Events)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		fmt.Println("No matching events.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tPACKAGE\tBEFORE\tAFTER")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Format("2006-01-02 15:04:05"),
			ev.Kind, ev.Key(),
			orDash(ev.VersionBefore), orDash(ev.VersionAfter))
	}
	return w.Flush()
}

func printSnapshot(snap types.PackageSnapshot) error {
	fmt.Printf("Installed at %s: %d packages\n\n",
		snap.AsOf.Format("2006-01-02 15:04:05"), snap.PresentCount())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PACKAGE\tVERSION")
	for _, key := range snap.Keys() {
		st := snap.Packages[key]
		if !st.Present {
			continue
		}
		if historyPackage != "" && st.Package != historyPackage {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", key, st.Version)
	}
	return w.Flush()
}

func filterEvents(events []types.PackageEvent) ([]types.PackageEvent, error) {
	var since, until time.Time
	var err error
	if historySince != "" {
		if since, err = parseTargetTime(historySince); err != nil {
			return nil, err
		}
	}
	if historyUntil != "" {
		if until, err = parseTargetTime(historyUntil); err != nil {
			return nil, err
		}
	}

	var out []types.PackageEvent
	for _, ev := range events {
		if !since.IsZero() && ev.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && ev.Timestamp.After(until) {
			continue
		}
		if historyPackage != "" && ev.Package != historyPackage {
			continue
		}
		out = append(out, ev)
	}

	if historyLimit > 0 && len(out) > historyLimit {
		out = out[len(out)-historyLimit:]
	}
	return out, nil
}
