package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an experiment with its events and annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteExperiment(context.Background(), name); err != nil {
					return notFound(name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted experiment '%s'.\n", name)
				return nil
			})
		},
	}
}
