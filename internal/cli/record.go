package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newRecordCmd())
}

func newRecordCmd() *cobra.Command {
	var (
		variant   int
		eventType string
		visitorID string
	)

	cmd := &cobra.Command{
		Use:   "record <name>",
		Short: "Record an event for a running experiment",
		Long: `Record an exposure, conversion or count event by hand.

Exposures and conversions are counted once per visitor. Count events are
summed. Without --visitor a new random visitor id is used.

Examples:
  trialsize record checkout --variant 1 --event exposure --visitor u-42
  trialsize record checkout --variant 1 --event conversion --visitor u-42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if visitorID == "" {
				visitorID = uuid.NewString()
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return notFound(name, err)
				}
				if err := exp.AcceptEvent(variant, eventType); err != nil {
					return err
				}

				if err := s.RecordEvent(ctx, name, variant, eventType, visitorID); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for visitor %s on variant %d (\"%s\")\n",
					eventType, visitorID, variant, exp.Variants[variant])
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&variant, "variant", "n", -1, "variant index (required)")
	cmd.Flags().StringVarP(&eventType, "event", "e", store.EventExposure, "event type: exposure, conversion or count")
	cmd.Flags().StringVar(&visitorID, "visitor", "", "visitor id (random if omitted)")
	cmd.MarkFlagRequired("variant")

	return cmd
}
