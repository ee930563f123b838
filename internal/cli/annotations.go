package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newAnnotationsCmd())
	rootCmd.AddCommand(newAnnotationCmd())
}

func parseDate(flag, value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: use YYYY-MM-DD", flag, value)
	}
	return t, nil
}

func newAnnotationsCmd() *cobra.Command {
	var search, after, before string

	cmd := &cobra.Command{
		Use:   "annotations <name>",
		Short: "List the notes on an experiment",
		Long: `List an experiment's notes, newest date first. Deleted notes are hidden.

Examples:
  trialsize annotations checkout
  trialsize annotations checkout --search pricing --after 2026-03-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			q := store.AnnotationQuery{Search: search}
			if after != "" {
				t, err := parseDate("after", after)
				if err != nil {
					return err
				}
				q.After = &t
			}
			if before != "" {
				t, err := parseDate("before", before)
				if err != nil {
					return err
				}
				// Inclusive of the whole day
				end := t.Add(24*time.Hour - time.Second)
				q.Before = &end
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()
				if _, err := s.GetExperiment(ctx, name); err != nil {
					return notFound(name, err)
				}

				annotations, err := s.ListAnnotations(ctx, name, q)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(annotations) == 0 {
					fmt.Fprintln(out, "No annotations match.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDATE\tNOTE")
				for _, a := range annotations {
					fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.DateMarker.Format("2006-01-02"), a.Content)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "text the note contains")
	cmd.Flags().StringVar(&after, "after", "", "only notes on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&before, "before", "", "only notes on or before this date (YYYY-MM-DD)")

	return cmd
}

func newAnnotationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotation",
		Short: "Edit, delete or restore a note by id",
	}
	cmd.AddCommand(newAnnotationEditCmd(), newAnnotationDeleteCmd(), newAnnotationRestoreCmd())
	return cmd
}

func parseAnnotationID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid annotation id %q", arg)
	}
	return id, nil
}

func annotationNotFound(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("annotation %d not found", id)
	}
	return err
}

func newAnnotationEditCmd() *cobra.Command {
	var text, date string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the text or date of a note",
		Long: `Change the text and/or the date marker of a note.

Example:
  trialsize annotation edit 3 --text "pricing page v2 shipped" --date 2026-03-04`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnnotationID(args[0])
			if err != nil {
				return err
			}

			var u store.AnnotationUpdate
			if cmd.Flags().Changed("text") {
				u.Content = &text
			}
			if date != "" {
				t, err := parseDate("date", date)
				if err != nil {
					return err
				}
				u.DateMarker = &t
			}
			if u.Content == nil && u.DateMarker == nil {
				return errors.New("nothing to change: pass --text and/or --date")
			}

			return withStore(func(s *store.SQLiteStore) error {
				a, err := s.UpdateAnnotation(context.Background(), id, u)
				if err != nil {
					return annotationNotFound(id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated annotation %d on %s: %s\n", a.ID, a.DateMarker.Format("2006-01-02"), a.Content)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "new note text")
	cmd.Flags().StringVarP(&date, "date", "d", "", "new date marker, YYYY-MM-DD")

	return cmd
}

func newAnnotationDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Hide a note (it can be restored)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnnotationID(args[0])
			if err != nil {
				return err
			}
			return withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteAnnotation(context.Background(), id); err != nil {
					return annotationNotFound(id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted annotation %d. Undo with 'trialsize annotation restore %d'.\n", id, id)
				return nil
			})
		},
	}
}

func newAnnotationRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Bring back a deleted note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAnnotationID(args[0])
			if err != nil {
				return err
			}
			return withStore(func(s *store.SQLiteStore) error {
				if err := s.RestoreAnnotation(context.Background(), id); err != nil {
					return annotationNotFound(id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored annotation %d.\n", id)
				return nil
			})
		},
	}
}
