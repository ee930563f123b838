package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/trialsize/trialsize/internal/store"
)

// SetupTestStore opens a store in t.TempDir() that is closed when the test ends.
func SetupTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// CreateExperiment stores a draft funnel experiment with a fixed goal of
// sampleSize participants.
func CreateExperiment(t *testing.T, s store.Store, name string, sampleSize int, variants ...string) *store.Experiment {
	t.Helper()

	if len(variants) == 0 {
		variants = []string{"control", "test"}
	}
	exp, err := s.CreateExperiment(context.Background(), &store.Experiment{
		Name:                  name,
		Variants:              variants,
		GoalType:              store.GoalFunnel,
		Baseline:              10,
		RecommendedSampleSize: sampleSize,
	})
	if err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}
	return exp
}

// LaunchExperiment creates a funnel experiment and moves it to running.
func LaunchExperiment(t *testing.T, s store.Store, name string, sampleSize int, variants ...string) *store.Experiment {
	t.Helper()

	CreateExperiment(t, s, name, sampleSize, variants...)
	ctx := context.Background()
	if err := s.Launch(ctx, name, time.Now()); err != nil {
		t.Fatalf("failed to launch experiment: %v", err)
	}
	exp, err := s.GetExperiment(ctx, name)
	if err != nil {
		t.Fatalf("failed to reload experiment: %v", err)
	}
	return exp
}

// Record records events and fails the test on error.
func Record(t *testing.T, s store.Store, name string, variant int, eventType string, visitorIDs ...string) {
	t.Helper()

	for _, id := range visitorIDs {
		if err := s.RecordEvent(context.Background(), name, variant, eventType, id); err != nil {
			t.Fatalf("failed to record %s for %s: %v", eventType, id, err)
		}
	}
}
