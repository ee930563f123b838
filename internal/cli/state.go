package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newLaunchCmd())
	rootCmd.AddCommand(newEndCmd())
}

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch <name>",
		Short: "Start a draft experiment",
		Long: `Start a draft experiment. The start date is recorded and the goal
computed at creation is frozen from this point on.

Example:
  trialsize launch checkout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transition(cmd, args[0], "launched", func(ctx context.Context, s *store.SQLiteStore, name string) error {
				return s.Launch(ctx, name, time.Now())
			})
		},
	}
}

func newEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <name>",
		Short: "Complete a running experiment",
		Long: `Complete a running experiment. The end date is recorded and elapsed
time stops counting toward trend goals.

Example:
  trialsize end checkout`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transition(cmd, args[0], "ended", func(ctx context.Context, s *store.SQLiteStore, name string) error {
				return s.End(ctx, name, time.Now())
			})
		},
	}
}

func transition(cmd *cobra.Command, name, verb string, fn func(context.Context, *store.SQLiteStore, string) error) error {
	return withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		exp, err := s.GetExperiment(ctx, name)
		if err != nil {
			return notFound(name, err)
		}

		err = fn(ctx, s, name)
		if errors.Is(err, store.ErrInvalidTransition) {
			return fmt.Errorf("experiment '%s' cannot be %s (current state: %s)", name, verb, exp.State)
		}
		if err != nil {
			return notFound(name, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Experiment '%s' %s.\n", name, verb)
		return nil
	})
}
