package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newParticipantsCmd())
}

func newParticipantsCmd() *cobra.Command {
	var (
		variant   int
		converted string
		search    string
		limit     int
		offset    int
	)

	cmd := &cobra.Command{
		Use:   "participants <name>",
		Short: "List visitors exposed to an experiment",
		Long: `List the visitors exposed to an experiment, one page at a time.

Examples:
  trialsize participants checkout --variant 1 --converted yes
  trialsize participants checkout --search u-4 --limit 20 --offset 40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			q := store.ParticipantQuery{Search: search, Limit: limit, Offset: offset}
			if cmd.Flags().Changed("variant") {
				q.Variant = &variant
			}
			switch converted {
			case "":
			case "yes":
				v := true
				q.Converted = &v
			case "no":
				v := false
				q.Converted = &v
			default:
				return fmt.Errorf("invalid --converted value %q: must be 'yes' or 'no'", converted)
			}

			return withStore(func(s *store.SQLiteStore) error {
				page, err := s.ListParticipants(context.Background(), name, q)
				if err != nil {
					return notFound(name, err)
				}

				out := cmd.OutOrStdout()
				if len(page.Participants) == 0 {
					fmt.Fprintln(out, "No participants match.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VISITOR\tVARIANT\tCONVERTED\tCOUNT\tFIRST SEEN")
				for _, p := range page.Participants {
					conv := "no"
					if p.Converted {
						conv = "yes"
					}
					fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n",
						p.VisitorID, p.Variant, conv, p.Count, p.FirstSeen.Format("2006-01-02 15:04"))
				}
				if err := w.Flush(); err != nil {
					return err
				}

				if page.HasMore {
					fmt.Fprintf(out, "\nMore results: --offset %d\n", page.NextOffset)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&variant, "variant", "n", 0, "only this variant index")
	cmd.Flags().StringVar(&converted, "converted", "", "only converted (yes) or unconverted (no) visitors")
	cmd.Flags().StringVarP(&search, "search", "s", "", "visitor id substring")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultParticipantLimit, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")

	return cmd
}
