package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newAnnotateCmd())
}

func newAnnotateCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "annotate <name> <text>",
		Short: "Add a dated note to an experiment",
		Long: `Add a dated note (a release, an outage, a campaign) that shows up with
the experiment's results.

Example:
  trialsize annotate checkout "pricing page redesign shipped" --date 2026-03-02`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, content := args[0], args[1]

			marker := time.Now()
			if date != "" {
				parsed, err := parseDate("date", date)
				if err != nil {
					return err
				}
				marker = parsed
			}

			return withStore(func(s *store.SQLiteStore) error {
				a, err := s.CreateAnnotation(context.Background(), name, content, marker)
				if err != nil {
					return notFound(name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Annotated '%s' on %s: %s (id %d)\n", name, a.DateMarker.Format("2006-01-02"), a.Content, a.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "date marker, YYYY-MM-DD (default today)")

	return cmd
}
