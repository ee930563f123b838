package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/trialsize/trialsize/internal/server"
	"github.com/trialsize/trialsize/internal/store"
)

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the trialsize HTTP server.

The server provides:
  - Beacon endpoint (POST /b) for recording events
  - Read API for experiments, progress, results and participants
  - Sample size and exposure calculators
  - Health check and Prometheus metrics

Example:
  trialsize serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := loadPolicy()
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				srv := server.New(s, port, policy)
				fmt.Fprintf(cmd.OutOrStdout(), "trialsize running on http://localhost:%d\n", port)
				fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
				return srv.Start()
			})
		},
	}

	defaultPort := 8080
	if p, err := strconv.Atoi(getEnvOrDefault("TS_PORT", "8080")); err == nil {
		defaultPort = p
	}
	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")

	return cmd
}
