package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	policyPath string
)

var rootCmd = &cobra.Command{
	Use:   "trialsize",
	Short: "trialsize - size, track and read out A/B experiments",
	Long: `trialsize estimates how many participants (or how many days) an A/B
experiment needs, freezes that goal when the experiment is created, and
tracks progress and significance while it runs.

Single Go binary, embedded SQLite, no external services.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("TS_DB_PATH", "./trialsize.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", getEnvOrDefault("TS_POLICY", ""), "sizing policy file (YAML or JSON)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
