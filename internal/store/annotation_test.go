package store_test

import (
	"testing"
	"time"

	"github.com/trialsize/trialsize/internal/store"
)

func TestPlaceholderKey(t *testing.T) {
	tests := []struct {
		existing []int64
		want     int64
	}{
		{nil, -1},
		{[]int64{1, 2, 3}, -1},
		{[]int64{4, -1}, -2},
		{[]int64{-3, -7, 10}, -8},
	}

	for _, tt := range tests {
		if got := store.PlaceholderKey(tt.existing); got != tt.want {
			t.Errorf("PlaceholderKey(%v) = %d, want %d", tt.existing, got, tt.want)
		}
	}
}

func TestPlaceholderKey_Unique(t *testing.T) {
	keys := []int64{1, 2}
	seen := map[int64]bool{1: true, 2: true}
	for i := 0; i < 20; i++ {
		k := store.PlaceholderKey(keys)
		if seen[k] {
			t.Fatalf("key %d issued twice", k)
		}
		seen[k] = true
		keys = append(keys, k)
	}
}

func TestTimeline(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	exp := &store.Experiment{Name: "hero", StartDate: &start, EndDate: &end}

	stored := []*store.Annotation{
		{ID: 2, ExperimentName: "hero", Content: "Newsletter sent", DateMarker: start.Add(10 * 24 * time.Hour)},
		{ID: 1, ExperimentName: "hero", Content: "Before launch", DateMarker: start.Add(-24 * time.Hour)},
	}

	timeline := store.Timeline(exp, stored)
	if len(timeline) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(timeline))
	}

	wantOrder := []string{"Experiment ended", "Newsletter sent", "Experiment launched", "Before launch"}
	for i, want := range wantOrder {
		if timeline[i].Content != want {
			t.Errorf("entry %d: got %q, want %q", i, timeline[i].Content, want)
		}
	}

	if timeline[2].ID != -1 || timeline[0].ID != -2 {
		t.Errorf("markers got ids %d and %d, want -1 and -2", timeline[2].ID, timeline[0].ID)
	}
}

func TestTimeline_Draft(t *testing.T) {
	exp := &store.Experiment{Name: "hero"}
	if got := store.Timeline(exp, nil); len(got) != 0 {
		t.Errorf("expected an empty timeline, got %d entries", len(got))
	}
}
