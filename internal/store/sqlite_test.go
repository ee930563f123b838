package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/trialsize/trialsize/internal/store"
	"github.com/trialsize/trialsize/internal/testutil"
)

func TestOpen(t *testing.T) {
	s := testutil.SetupTestStore(t)

	if s == nil {
		t.Fatal("expected non-nil store")
	}
	if err := s.DB().Ping(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestCreateExperiment(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	exp, err := s.CreateExperiment(ctx, &store.Experiment{
		Name:                  "hero",
		Variants:              []string{"control", "a", "b"},
		GoalType:              store.GoalFunnel,
		GoalDescription:       "Signup button click",
		Baseline:              10,
		RecommendedSampleSize: 4710,
	})
	if err != nil {
		t.Fatalf("failed to create experiment: %v", err)
	}

	if exp.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if exp.State != store.StateDraft {
		t.Errorf("got State %s, want draft", exp.State)
	}
	if exp.StartDate != nil || exp.EndDate != nil {
		t.Error("a new experiment has no start or end date")
	}

	got, err := s.GetExperiment(ctx, "hero")
	if err != nil {
		t.Fatalf("failed to get experiment: %v", err)
	}
	if len(got.Variants) != 3 || got.Variants[0] != "control" {
		t.Errorf("got variants %v", got.Variants)
	}
	if got.GoalType != store.GoalFunnel {
		t.Errorf("got GoalType %s, want funnel", got.GoalType)
	}
	if got.GoalDescription != "Signup button click" {
		t.Errorf("got GoalDescription %q", got.GoalDescription)
	}
	if got.RecommendedSampleSize != 4710 {
		t.Errorf("got RecommendedSampleSize %d, want 4710", got.RecommendedSampleSize)
	}
	if got.Baseline != 10 {
		t.Errorf("got Baseline %v, want 10", got.Baseline)
	}
}

func TestCreateExperiment_Duplicate(t *testing.T) {
	s := testutil.SetupTestStore(t)
	testutil.CreateExperiment(t, s, "hero", 100)

	_, err := s.CreateExperiment(context.Background(), &store.Experiment{
		Name:     "hero",
		Variants: []string{"control", "test"},
		GoalType: store.GoalFunnel,
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetExperiment_NotFound(t *testing.T) {
	s := testutil.SetupTestStore(t)

	_, err := s.GetExperiment(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListExperiments(t *testing.T) {
	s := testutil.SetupTestStore(t)

	experiments, err := s.ListExperiments(context.Background())
	if err != nil {
		t.Fatalf("failed to list experiments: %v", err)
	}
	if len(experiments) != 0 {
		t.Errorf("expected no experiments, got %d", len(experiments))
	}

	testutil.CreateExperiment(t, s, "first", 100)
	testutil.CreateExperiment(t, s, "second", 100)

	experiments, err = s.ListExperiments(context.Background())
	if err != nil {
		t.Fatalf("failed to list experiments: %v", err)
	}
	if len(experiments) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(experiments))
	}
	// Newest first
	if experiments[0].Name != "second" {
		t.Errorf("expected second first, got %s", experiments[0].Name)
	}
}

func TestLifecycle(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	testutil.CreateExperiment(t, s, "hero", 100)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := s.Launch(ctx, "hero", start); err != nil {
		t.Fatalf("failed to launch: %v", err)
	}

	exp, _ := s.GetExperiment(ctx, "hero")
	if exp.State != store.StateRunning {
		t.Errorf("got State %s, want running", exp.State)
	}
	if exp.StartDate == nil || !exp.StartDate.Equal(start) {
		t.Errorf("got StartDate %v, want %v", exp.StartDate, start)
	}

	if err := s.Launch(ctx, "hero", start); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("launching twice: expected ErrInvalidTransition, got %v", err)
	}

	end := start.Add(72 * time.Hour)
	if err := s.End(ctx, "hero", end); err != nil {
		t.Fatalf("failed to end: %v", err)
	}

	exp, _ = s.GetExperiment(ctx, "hero")
	if exp.State != store.StateComplete {
		t.Errorf("got State %s, want complete", exp.State)
	}
	if exp.EndDate == nil || !exp.EndDate.Equal(end) {
		t.Errorf("got EndDate %v, want %v", exp.EndDate, end)
	}
	if days := exp.ElapsedDays(end.Add(24 * time.Hour)); days != 3 {
		t.Errorf("elapsed days should stop at the end date, got %v", days)
	}

	if err := s.End(ctx, "hero", end); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("ending twice: expected ErrInvalidTransition, got %v", err)
	}
}

func TestEnd_Draft(t *testing.T) {
	s := testutil.SetupTestStore(t)
	testutil.CreateExperiment(t, s, "hero", 100)

	if err := s.End(context.Background(), "hero", time.Now()); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransitions_NotFound(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()

	if err := s.Launch(ctx, "missing", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Launch: expected ErrNotFound, got %v", err)
	}
	if err := s.End(ctx, "missing", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("End: expected ErrNotFound, got %v", err)
	}
	if err := s.Resize(ctx, "missing", 5, 10, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Resize: expected ErrNotFound, got %v", err)
	}
}

func TestResize(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	testutil.CreateExperiment(t, s, "hero", 3140)

	if err := s.Resize(ctx, "hero", 50, 8722, 0); err != nil {
		t.Fatalf("failed to resize draft: %v", err)
	}

	exp, _ := s.GetExperiment(ctx, "hero")
	if exp.RecommendedSampleSize != 8722 || exp.Baseline != 50 {
		t.Errorf("got size %d baseline %v, want 8722 and 50", exp.RecommendedSampleSize, exp.Baseline)
	}
}

func TestResize_FrozenAfterLaunch(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	testutil.LaunchExperiment(t, s, "hero", 3140)

	err := s.Resize(ctx, "hero", 50, 8722, 0)
	if !errors.Is(err, store.ErrGoalFrozen) {
		t.Fatalf("expected ErrGoalFrozen, got %v", err)
	}

	exp, _ := s.GetExperiment(ctx, "hero")
	if exp.RecommendedSampleSize != 3140 {
		t.Errorf("goal changed after launch: got %d", exp.RecommendedSampleSize)
	}
}

func TestDeleteExperiment(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	testutil.LaunchExperiment(t, s, "hero", 100)
	testutil.Record(t, s, "hero", 0, store.EventExposure, "v1")
	if _, err := s.CreateAnnotation(ctx, "hero", "note", time.Now()); err != nil {
		t.Fatalf("failed to annotate: %v", err)
	}

	if err := s.DeleteExperiment(ctx, "hero"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	if _, err := s.GetExperiment(ctx, "hero"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	events, _ := s.GetEvents(ctx, "hero")
	if len(events) != 0 {
		t.Errorf("expected events to be deleted, got %d", len(events))
	}
	annotations, _ := s.ListAnnotations(ctx, "hero", store.AnnotationQuery{})
	if len(annotations) != 0 {
		t.Errorf("expected annotations to be deleted, got %d", len(annotations))
	}

	if err := s.DeleteExperiment(ctx, "hero"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestRecordEvent_Deduplication(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	testutil.LaunchExperiment(t, s, "hero", 100)

	testutil.Record(t, s, "hero", 0, store.EventExposure, "v1", "v1", "v2")
	testutil.Record(t, s, "hero", 0, store.EventConversion, "v1", "v1")
	testutil.Record(t, s, "hero", 1, store.EventExposure, "v3")
	// Counts are never deduplicated
	testutil.Record(t, s, "hero", 1, store.EventCount, "v3", "v3", "v3")

	stats, err := s.GetVariantStats(ctx, "hero")
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 variants of stats, got %d", len(stats))
	}

	want := []store.VariantStats{
		{Variant: 0, Exposures: 2, Conversions: 1},
		{Variant: 1, Exposures: 1, Count: 3},
	}
	for i, w := range want {
		if stats[i] != w {
			t.Errorf("variant %d: got %+v, want %+v", i, stats[i], w)
		}
	}

	events, err := s.GetEvents(ctx, "hero")
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 7 {
		t.Errorf("expected 7 stored events, got %d", len(events))
	}
}

func TestGetVariantStats_Empty(t *testing.T) {
	s := testutil.SetupTestStore(t)
	testutil.LaunchExperiment(t, s, "hero", 100)

	stats, err := s.GetVariantStats(context.Background(), "hero")
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("expected no stats, got %d", len(stats))
	}
}

func seedParticipants(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	testutil.LaunchExperiment(t, s, "hero", 100)

	for i := 0; i < 5; i++ {
		testutil.Record(t, s, "hero", 0, store.EventExposure, fmt.Sprintf("ctrl-%d", i))
	}
	for i := 0; i < 3; i++ {
		testutil.Record(t, s, "hero", 1, store.EventExposure, fmt.Sprintf("test-%d", i))
	}
	testutil.Record(t, s, "hero", 0, store.EventConversion, "ctrl-1")
	testutil.Record(t, s, "hero", 1, store.EventConversion, "test-2")
	testutil.Record(t, s, "hero", 1, store.EventCount, "test-2", "test-2")
	// Converted without an exposure; not a participant
	testutil.Record(t, s, "hero", 1, store.EventConversion, "ghost")
}

func TestListParticipants(t *testing.T) {
	s := testutil.SetupTestStore(t)
	seedParticipants(t, s)

	page, err := s.ListParticipants(context.Background(), "hero", store.ParticipantQuery{})
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(page.Participants) != 8 {
		t.Fatalf("expected 8 participants, got %d", len(page.Participants))
	}
	if page.HasMore {
		t.Error("expected a single page")
	}

	for _, p := range page.Participants {
		if p.VisitorID == "ghost" {
			t.Error("unexposed visitor listed as participant")
		}
		if p.VisitorID == "test-2" && (!p.Converted || p.Count != 2) {
			t.Errorf("test-2: got converted=%v count=%d", p.Converted, p.Count)
		}
	}
}

func TestListParticipants_Filters(t *testing.T) {
	s := testutil.SetupTestStore(t)
	seedParticipants(t, s)
	ctx := context.Background()

	variant := 1
	page, err := s.ListParticipants(ctx, "hero", store.ParticipantQuery{Variant: &variant})
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(page.Participants) != 3 {
		t.Errorf("variant filter: expected 3, got %d", len(page.Participants))
	}

	converted := true
	page, err = s.ListParticipants(ctx, "hero", store.ParticipantQuery{Converted: &converted})
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(page.Participants) != 2 {
		t.Errorf("converted filter: expected 2, got %d", len(page.Participants))
	}

	notConverted := false
	page, err = s.ListParticipants(ctx, "hero", store.ParticipantQuery{Converted: &notConverted})
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(page.Participants) != 6 {
		t.Errorf("not converted filter: expected 6, got %d", len(page.Participants))
	}

	page, err = s.ListParticipants(ctx, "hero", store.ParticipantQuery{Search: "CTRL"})
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(page.Participants) != 5 {
		t.Errorf("search: expected 5, got %d", len(page.Participants))
	}

	// Wildcards are matched literally
	page, err = s.ListParticipants(ctx, "hero", store.ParticipantQuery{Search: "%"})
	if err != nil {
		t.Fatalf("failed to list participants: %v", err)
	}
	if len(page.Participants) != 0 {
		t.Errorf("literal %%: expected 0, got %d", len(page.Participants))
	}
}

func TestListParticipants_Paging(t *testing.T) {
	s := testutil.SetupTestStore(t)
	seedParticipants(t, s)
	ctx := context.Background()

	seen := map[string]bool{}
	q := store.ParticipantQuery{Limit: 3}
	pages := 0
	for {
		page, err := s.ListParticipants(ctx, "hero", q)
		if err != nil {
			t.Fatalf("failed to list participants: %v", err)
		}
		pages++
		for _, p := range page.Participants {
			if seen[p.VisitorID] {
				t.Errorf("%s listed twice", p.VisitorID)
			}
			seen[p.VisitorID] = true
		}
		if !page.HasMore {
			break
		}
		q.Offset = page.NextOffset
	}

	if pages != 3 {
		t.Errorf("expected 3 pages of 3, got %d", pages)
	}
	if len(seen) != 8 {
		t.Errorf("expected 8 distinct participants, got %d", len(seen))
	}
}

func TestListParticipants_NotFound(t *testing.T) {
	s := testutil.SetupTestStore(t)

	_, err := s.ListParticipants(context.Background(), "missing", store.ParticipantQuery{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAnnotations(t *testing.T) {
	s := testutil.SetupTestStore(t)
	ctx := context.Background()
	testutil.CreateExperiment(t, s, "hero", 100)

	older := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)

	a, err := s.CreateAnnotation(ctx, "hero", "Holiday sale started", older)
	if err != nil {
		t.Fatalf("failed to create annotation: %v", err)
	}
	if a.ID <= 0 {
		t.Errorf("expected a positive id, got %d", a.ID)
	}
	if _, err := s.CreateAnnotation(ctx, "hero", "Pricing page redesign", newer); err != nil {
		t.Fatalf("failed to create annotation: %v", err)
	}

	annotations, err := s.ListAnnotations(ctx, "hero", store.AnnotationQuery{})
	if err != nil {
		t.Fatalf("failed to list annotations: %v", err)
	}
	if len(annotations) != 2 {
		t.Fatalf("expected 2 annotations, got %d", len(annotations))
	}
	if annotations[0].Content != "Pricing page redesign" {
		t.Errorf("expected newest first, got %q", annotations[0].Content)
	}
	if !annotations[1].DateMarker.Equal(older) {
		t.Errorf("got DateMarker %v, want %v", annotations[1].DateMarker, older)
	}
}

func TestCreateAnnotation_NotFound(t *testing.T) {
	s := testutil.SetupTestStore(t)

	_, err := s.CreateAnnotation(context.Background(), "missing", "note", time.Now())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
