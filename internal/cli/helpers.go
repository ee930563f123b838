package cli

import (
	"errors"
	"fmt"

	"github.com/trialsize/trialsize/internal/sizing"
	"github.com/trialsize/trialsize/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	return fn(s)
}

func loadPolicy() (sizing.Policy, error) {
	policy, err := sizing.LoadPolicy(policyPath)
	if err != nil {
		return policy, fmt.Errorf("failed to load policy: %w", err)
	}
	return policy, nil
}

// notFound rewrites store.ErrNotFound into a message naming the experiment.
func notFound(name string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("experiment '%s' not found", name)
	}
	return err
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}

func formatDays(days float64) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%.1f days", days)
}
