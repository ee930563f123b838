package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newExposureCmd())
}

func newExposureCmd() *cobra.Command {
	var count float64

	cmd := &cobra.Command{
		Use:   "exposure",
		Short: "Estimate the running time of a trend experiment",
		Long: `Estimate how many days a trend (count) experiment should run, given the
number of goal events observed over the baseline window (14 days by default).

Example:
  trialsize exposure --count 5000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy()
			if err != nil {
				return err
			}

			days := policy.RecommendedExposureForCountData(count)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Baseline count: %g over %g days\n", count, policy.BaselineWindowDays)
			fmt.Fprintf(out, "Minimum detectable effect: %.1f%% of the baseline\n", policy.MinimumDetectableEffect*100)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Recommended running time: %s\n", formatDays(days))
			if days >= policy.MaxExposureDays {
				fmt.Fprintln(out, "Note: capped at the policy maximum. The goal event may be too rare to test.")
			}
			return nil
		},
	}

	cmd.Flags().Float64VarP(&count, "count", "c", 0, "goal events observed over the baseline window (required)")
	cmd.MarkFlagRequired("count")

	return cmd
}
