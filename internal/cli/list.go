package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/report"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newListCmd())
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all experiments",
		Long:  `List all experiments with their state, goal and progress.`,
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		experiments, err := s.ListExperiments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}

		if len(experiments) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No experiments yet.")
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), "Create one with:")
			fmt.Fprintln(cmd.OutOrStdout(), "  trialsize create checkout --variants \"control,test\" --goal funnel --baseline 10")
			return nil
		}

		now := time.Now()

		// Print table
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tGOAL\tSTATE\tVARIANTS\tEXPOSED\tTARGET\tPROGRESS\tCREATED")

		for _, exp := range experiments {
			variantStats, err := s.GetVariantStats(ctx, exp.Name)
			if err != nil {
				return fmt.Errorf("failed to get stats for experiment %s: %w", exp.Name, err)
			}

			exposed := 0
			for _, vs := range variantStats {
				exposed += vs.Exposures
			}

			plan := report.PlanOf(exp)
			progress := "-"
			if exp.State != store.StateDraft {
				progress = fmt.Sprintf("%.1f%%", plan.Progress(report.Observed(exp, variantStats, now)))
			}

			target := formatNumber(exp.RecommendedSampleSize)
			if exp.GoalType == store.GoalTrend {
				target = formatDays(exp.RecommendedRunningTime)
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				exp.Name,
				exp.GoalType,
				strings.ToUpper(string(exp.State)),
				len(exp.Variants),
				formatNumber(exposed),
				target,
				progress,
				exp.CreatedAt.Format("2006-01-02"),
			)
		}

		return w.Flush()
	})
}
