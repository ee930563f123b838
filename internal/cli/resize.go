package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newResizeCmd())
}

func newResizeCmd() *cobra.Command {
	var baseline float64

	cmd := &cobra.Command{
		Use:   "resize <name>",
		Short: "Recompute the goal of a draft experiment",
		Long: `Recompute the recommended goal of an experiment from a new baseline.

Only drafts can be resized. Once an experiment is launched its goal is frozen
so progress is always measured against the same target.

Example:
  trialsize resize checkout --baseline 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			policy, err := loadPolicy()
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return notFound(name, err)
				}

				plan, err := policy.Plan(sizing.GoalType(exp.GoalType), sizing.VariantSet(exp.Variants), baseline)
				if err != nil {
					return err
				}

				err = s.Resize(ctx, name, plan.Baseline, plan.RecommendedSampleSize, plan.RecommendedRunningTime)
				if errors.Is(err, store.ErrGoalFrozen) {
					return fmt.Errorf("experiment '%s' is %s; its goal is frozen", name, exp.State)
				}
				if err != nil {
					return notFound(name, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Resized experiment '%s':\n", name)
				printPlan(cmd.OutOrStdout(), plan)
				return nil
			})
		},
	}

	cmd.Flags().Float64VarP(&baseline, "baseline", "b", 0, "conversion rate in percent (funnel) or event count (trend)")
	cmd.MarkFlagRequired("baseline")

	return cmd
}
