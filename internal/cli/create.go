package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		variants    string
		goal        string
		baseline    float64
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a draft experiment and freeze its recommended goal.

For funnel goals --baseline is the current conversion rate in percent and the
goal is a total sample size. For trend goals --baseline is the goal event count
over the baseline window and the goal is a running time in days.

The goal is computed once here. Use 'resize' to change it before launch;
after launch it is fixed.

Examples:
  trialsize create checkout --variants "control,test" --goal funnel --baseline 10
  trialsize create pageviews --variants "control,a,b" --goal trend --baseline 5000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			variantSet := sizing.ParseVariants(variants)
			if err := variantSet.Validate(); err != nil {
				return fmt.Errorf("invalid variants: %w. Example: --variants \"control,test\"", err)
			}

			goalType := sizing.GoalType(goal)
			if goal == "" {
				var err error
				goalType, err = promptGoal()
				if err != nil {
					return err
				}
			}

			policy, err := loadPolicy()
			if err != nil {
				return err
			}

			plan, err := policy.Plan(goalType, variantSet, baseline)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				exp, err := s.CreateExperiment(context.Background(), &store.Experiment{
					Name:                   name,
					Variants:               variantSet,
					GoalType:               store.GoalType(plan.Goal),
					GoalDescription:        description,
					Baseline:               plan.Baseline,
					RecommendedSampleSize:  plan.RecommendedSampleSize,
					RecommendedRunningTime: plan.RecommendedRunningTime,
				})
				if errors.Is(err, store.ErrAlreadyExists) {
					return fmt.Errorf("experiment '%s' already exists", name)
				}
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created %s experiment '%s' with %d variants:\n", exp.GoalType, exp.Name, len(exp.Variants))
				for i, v := range exp.Variants {
					if i == 0 {
						fmt.Fprintf(out, "  %d: %s (control)\n", i, v)
						continue
					}
					fmt.Fprintf(out, "  %d: %s\n", i, v)
				}
				printPlan(out, plan)
				fmt.Fprintf(out, "\nRun 'trialsize launch %s' to start it.\n", exp.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated variant keys, control first (required)")
	cmd.Flags().StringVarP(&goal, "goal", "g", "", "goal type: funnel or trend (prompted if omitted)")
	cmd.Flags().Float64VarP(&baseline, "baseline", "b", 0, "conversion rate in percent (funnel) or event count (trend)")
	cmd.Flags().StringVar(&description, "description", "", "what the goal event is (optional)")
	cmd.MarkFlagRequired("variants")
	cmd.MarkFlagRequired("baseline")

	return cmd
}

func promptGoal() (sizing.GoalType, error) {
	goals := []string{
		"Funnel (conversion rate)",
		"Trend (event count over time)",
	}

	prompt := promptui.Select{
		Label: "Goal type",
		Items: goals,
		Size:  2,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}

	return goalFromIndex(idx), nil
}

func goalFromIndex(idx int) sizing.GoalType {
	if idx == 1 {
		return sizing.Trend
	}
	return sizing.Funnel
}
