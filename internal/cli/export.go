package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/report"
	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name>",
		Short: "Export an experiment and its raw events as JSON",
		Long: `Export an experiment, its frozen goal and its raw event data as JSON.

Example:
  trialsize export checkout > checkout.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return notFound(name, err)
				}

				events, err := s.GetEvents(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to get events: %w", err)
				}

				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(buildExport(exp, events))
			})
		},
	}
}

type jsonExport struct {
	Name      string      `json:"name"`
	Variants  []string    `json:"variants"`
	State     string      `json:"state"`
	Plan      sizing.Plan `json:"plan"`
	StartDate *int64      `json:"start_date,omitempty"`
	EndDate   *int64      `json:"end_date,omitempty"`
	Events    []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Timestamp int64  `json:"timestamp"`
	Variant   int    `json:"variant"`
	EventType string `json:"event_type"`
	VisitorID string `json:"visitor_id"`
}

func buildExport(exp *store.Experiment, events []*store.Event) jsonExport {
	export := jsonExport{
		Name:     exp.Name,
		Variants: exp.Variants,
		State:    string(exp.State),
		Plan:     report.PlanOf(exp),
		Events:   make([]jsonEvent, len(events)),
	}
	if exp.StartDate != nil {
		ts := exp.StartDate.Unix()
		export.StartDate = &ts
	}
	if exp.EndDate != nil {
		ts := exp.EndDate.Unix()
		export.EndDate = &ts
	}

	for i, e := range events {
		export.Events[i] = jsonEvent{
			Timestamp: e.CreatedAt.Unix(),
			Variant:   e.Variant,
			EventType: e.EventType,
			VisitorID: e.VisitorID,
		}
	}

	return export
}
