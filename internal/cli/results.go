package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/report"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newResultsCmd())
}

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <name>",
		Short: "Show detailed results for an experiment",
		Long:  `Show per-variant results with confidence intervals, progress toward the goal and the significance summary.`,
		Args:  cobra.ExactArgs(1),
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
				printResults(cmd, r, policy.Confidence)
				return nil
			})
		},
	}
}

func printResults(cmd *cobra.Command, r *report.Report, confidence float64) {
	out := cmd.OutOrStdout()
	exp := r.Experiment
	trend := exp.GoalType == store.GoalTrend

	// Print header
	fmt.Fprintf(out, "EXPERIMENT: %s\n", exp.Name)
	fmt.Fprintf(out, "STATE: %s\n", exp.State)
	fmt.Fprintf(out, "GOAL: %s", exp.GoalType)
	if exp.GoalDescription != "" {
		fmt.Fprintf(out, " (%s)", exp.GoalDescription)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "CREATED: %s\n", exp.CreatedAt.Format("2006-01-02"))
	if exp.StartDate != nil {
		fmt.Fprintf(out, "STARTED: %s\n", exp.StartDate.Format("2006-01-02"))
	}
	if exp.EndDate != nil {
		fmt.Fprintf(out, "ENDED: %s\n", exp.EndDate.Format("2006-01-02"))
	}
	printProgress(out, r)
	fmt.Fprintln(out)

	// Print table header
	ciLabel := fmt.Sprintf("%.0f%% CI", confidence*100)
	if trend {
		fmt.Fprintf(out, "VARIANT           EXPOSED  COUNT        MEAN     %s\n", ciLabel)
	} else {
		fmt.Fprintf(out, "VARIANT           EXPOSED  CONVERSIONS  RATE     %s\n", ciLabel)
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))

	// Print each variant
	for _, v := range r.Result.Variants {
		indicator := ""
		if v.Index == r.Result.LeadingVariant && len(r.Result.Variants) > 1 && v.Exposures > 0 {
			indicator = " ← LEADING"
		}

		// Truncate name if too long
		name := v.Name
		if len(name) > 16 {
			name = name[:13] + "..."
		}

		var measured int
		var rate, ciStr string
		if trend {
			measured = v.Count
			rate = fmt.Sprintf("%.3f", v.Rate)
			ciStr = fmt.Sprintf("[%.3f, %.3f]", v.CILower, v.CIUpper)
		} else {
			measured = v.Conversions
			rate = formatPercent(v.Rate)
			ciStr = fmt.Sprintf("[%.1f%%, %.1f%%]", v.CILower*100, v.CIUpper*100)
		}
		if v.Exposures == 0 {
			ciStr = "N/A"
		}

		fmt.Fprintf(out, "%-16s  %-7d  %-11d  %-7s  %s%s\n",
			name,
			v.Exposures,
			measured,
			rate,
			ciStr,
			indicator,
		)
	}

	fmt.Fprintln(out)

	if r.Banner != "" {
		fmt.Fprintf(out, "Statistical significance: %s\n", r.Banner)
	}

	if len(r.Timeline) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "ANNOTATIONS:")
		for _, a := range r.Timeline {
			fmt.Fprintf(out, "  %s  %s\n", a.DateMarker.Format("2006-01-02"), a.Content)
		}
	}
}
