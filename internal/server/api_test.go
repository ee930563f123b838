package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialsize/trialsize/internal/store"
	"github.com/trialsize/trialsize/internal/testutil"
)

type experimentJSON struct {
	Name            string   `json:"name"`
	GoalType        string   `json:"goal_type"`
	State           string   `json:"state"`
	Variants        []string `json:"variants"`
	Observed        float64  `json:"observed"`
	ProgressPercent float64  `json:"progress_percent"`
	Plan            struct {
		RecommendedSampleSize int `json:"recommended_sample_size"`
	} `json:"plan"`
	Results []struct {
		Name      string  `json:"name"`
		Exposures int     `json:"exposures"`
		Rate      float64 `json:"rate"`
	} `json:"results"`
	Banner      string `json:"banner"`
	Annotations []struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	} `json:"annotations"`
}

func TestExperimentsAPI_Empty(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := get(t, srv, "/api/experiments")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestExperimentsAPI_List(t *testing.T) {
	srv, s := setupTestServer(t)
	testutil.LaunchExperiment(t, s, "hero", 10)
	testutil.CreateExperiment(t, s, "pricing", 100)
	testutil.Record(t, s, "hero", 0, store.EventExposure, "a", "b")
	testutil.Record(t, s, "hero", 1, store.EventExposure, "c")

	w := get(t, srv, "/api/experiments")
	require.Equal(t, http.StatusOK, w.Code)

	var items []experimentJSON
	require.NoError(t, json.NewDecoder(w.Body).Decode(&items))
	require.Len(t, items, 2)

	byName := map[string]experimentJSON{}
	for _, it := range items {
		byName[it.Name] = it
	}
	assert.Equal(t, "running", byName["hero"].State)
	assert.InDelta(t, 30.0, byName["hero"].ProgressPercent, 1e-9)
	assert.Equal(t, "draft", byName["pricing"].State)
	assert.Zero(t, byName["pricing"].ProgressPercent)
}

func TestExperimentDetail(t *testing.T) {
	srv, s := setupTestServer(t)
	testutil.LaunchExperiment(t, s, "hero", 40, "control", "Bold")
	for i := 0; i < 10; i++ {
		testutil.Record(t, s, "hero", 0, store.EventExposure, fmt.Sprintf("c%d", i))
		testutil.Record(t, s, "hero", 1, store.EventExposure, fmt.Sprintf("b%d", i))
	}
	testutil.Record(t, s, "hero", 1, store.EventConversion, "b1", "b2", "b3")

	w := get(t, srv, "/api/experiments/hero")
	require.Equal(t, http.StatusOK, w.Code)

	var detail experimentJSON
	require.NoError(t, json.NewDecoder(w.Body).Decode(&detail))

	assert.Equal(t, "hero", detail.Name)
	assert.Equal(t, "funnel", detail.GoalType)
	assert.Equal(t, 40, detail.Plan.RecommendedSampleSize)
	assert.InDelta(t, 50.0, detail.ProgressPercent, 1e-9)
	require.Len(t, detail.Results, 2)
	assert.Equal(t, "Bold", detail.Results[1].Name)
	assert.InDelta(t, 0.3, detail.Results[1].Rate, 1e-9)
	assert.NotEmpty(t, detail.Banner)
	require.Len(t, detail.Annotations, 1)
	assert.Equal(t, int64(-1), detail.Annotations[0].ID)
}

func TestExperimentDetail_NotFound(t *testing.T) {
	srv, _ := setupTestServer(t)

	for _, path := range []string{"/api/experiments/missing", "/api/experiments/missing/participants", "/api/experiments/"} {
		w := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestParticipantsAPI(t *testing.T) {
	srv, s := setupTestServer(t)
	testutil.LaunchExperiment(t, s, "hero", 100)
	for i := 0; i < 4; i++ {
		testutil.Record(t, s, "hero", i%2, store.EventExposure, fmt.Sprintf("visitor-%d", i))
	}
	testutil.Record(t, s, "hero", 1, store.EventConversion, "visitor-1")

	var page struct {
		Participants []struct {
			VisitorID string `json:"visitor_id"`
			Variant   int    `json:"variant"`
			Converted bool   `json:"converted"`
		} `json:"participants"`
		HasMore    bool `json:"has_more"`
		NextOffset int  `json:"next_offset"`
	}

	w := get(t, srv, "/api/experiments/hero/participants?limit=3")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	assert.Len(t, page.Participants, 3)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.NextOffset)

	w = get(t, srv, "/api/experiments/hero/participants?converted=true")
	require.Equal(t, http.StatusOK, w.Code)
	page.Participants = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.Len(t, page.Participants, 1)
	assert.Equal(t, "visitor-1", page.Participants[0].VisitorID)

	w = get(t, srv, "/api/experiments/hero/participants?variant=0&search=VISITOR")
	require.Equal(t, http.StatusOK, w.Code)
	page.Participants = nil
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	assert.Len(t, page.Participants, 2)
}

func TestParticipantsAPI_BadQuery(t *testing.T) {
	srv, s := setupTestServer(t)
	testutil.LaunchExperiment(t, s, "hero", 100)

	for _, q := range []string{"variant=x", "converted=maybe", "limit=-1", "offset=abc"} {
		w := get(t, srv, "/api/experiments/hero/participants?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}
