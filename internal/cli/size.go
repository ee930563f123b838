package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/sizing"
)

func init() {
	rootCmd.AddCommand(newSizeCmd())
}

func newSizeCmd() *cobra.Command {
	var (
		rate     float64
		variants int
	)

	cmd := &cobra.Command{
		Use:   "size",
		Short: "Estimate the sample size of a funnel experiment",
		Long: `Estimate how many participants each variant of a funnel (conversion)
experiment needs, given the current conversion rate in percent.

Examples:
  trialsize size --rate 10
  trialsize size --rate 4.5 --variants 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if variants < sizing.MinVariants || variants > sizing.MaxVariants {
				return fmt.Errorf("variants must be between %d and %d (control plus up to %d test variants)",
					sizing.MinVariants, sizing.MaxVariants, sizing.MaxVariants-1)
			}

			policy, err := loadPolicy()
			if err != nil {
				return err
			}

			size := policy.Size(rate, variants)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Baseline conversion rate: %.2f%%\n", rate)
			fmt.Fprintf(out, "Minimum detectable effect: %s\n", describeEffect(policy))
			fmt.Fprintf(out, "Confidence %.0f%%, power %.0f%%\n", policy.Confidence*100, policy.Power*100)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Sample size per variant: %s\n", formatNumber(size.SampleSizePerVariant))
			fmt.Fprintf(out, "Total sample size (%d variants): %s\n", variants, formatNumber(size.TotalSampleSize))
			return nil
		},
	}

	cmd.Flags().Float64VarP(&rate, "rate", "r", 0, "current conversion rate in percent (required)")
	cmd.Flags().IntVarP(&variants, "variants", "n", 2, "number of variants including control")
	cmd.MarkFlagRequired("rate")

	return cmd
}

func describeEffect(p sizing.Policy) string {
	if p.Effect == sizing.EffectRelative {
		return fmt.Sprintf("%.1f%% of the baseline", p.MinimumDetectableEffect*100)
	}
	return fmt.Sprintf("%.1f percentage points", p.MinimumDetectableEffect*100)
}
