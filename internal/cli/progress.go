package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/report"
	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newProgressCmd())
}

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <name>",
		Short: "Show progress toward the experiment's goal",
		Long: `Show how far an experiment has come toward the goal frozen at creation:
exposed participants against the recommended sample size (funnel) or elapsed
days against the recommended running time (trend).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			policy, err := loadPolicy()
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				r, err := report.Build(context.Background(), s, name, policy.Confidence, time.Now())
				if err != nil {
					return notFound(name, err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "EXPERIMENT: %s\n", r.Experiment.Name)
				fmt.Fprintf(out, "STATE: %s\n", r.Experiment.State)
				printPlan(out, r.Plan)
				printProgress(out, r)
				return nil
			})
		},
	}
}

func printPlan(out io.Writer, plan sizing.Plan) {
	switch plan.Goal {
	case sizing.Trend:
		fmt.Fprintf(out, "  Baseline count: %g\n", plan.Baseline)
		fmt.Fprintf(out, "  Recommended running time: %s\n", formatDays(plan.RecommendedRunningTime))
	default:
		fmt.Fprintf(out, "  Baseline conversion rate: %.2f%%\n", plan.Baseline)
		if plan.SampleSizePerVariant > 0 {
			fmt.Fprintf(out, "  Sample size per variant: %s\n", formatNumber(plan.SampleSizePerVariant))
		}
		fmt.Fprintf(out, "  Recommended sample size: %s\n", formatNumber(plan.RecommendedSampleSize))
	}
}

func printProgress(out io.Writer, r *report.Report) {
	if r.Experiment.State == store.StateDraft {
		fmt.Fprintln(out, "\nNot launched yet.")
		return
	}

	var observed string
	if r.Plan.Goal == sizing.Trend {
		observed = fmt.Sprintf("%.1f of %s", r.Observed, formatDays(r.Plan.Target()))
	} else {
		observed = fmt.Sprintf("%s of %s participants", formatNumber(int(r.Observed)), formatNumber(int(r.Plan.Target())))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "PROGRESS: %.1f%% (%s)\n", r.Progress, observed)
	fmt.Fprintln(out, progressBar(r.Progress, 40))
	if r.Progress >= 100 {
		fmt.Fprintln(out, "Goal reached.")
	}
}

// progressBar renders a fixed-width bar; overruns fill the bar.
func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
