package store

import (
	"sort"
	"time"
)

// PlaceholderKey returns a synthetic key for an annotation that has not been
// saved yet. Placeholders count down from -1 so they never collide with
// stored ids or with each other.
func PlaceholderKey(existing []int64) int64 {
	lowest := int64(0)
	for _, k := range existing {
		if k < lowest {
			lowest = k
		}
	}
	return lowest - 1
}

// Timeline merges stored annotations with unsaved lifecycle markers for the
// experiment's launch and end. Markers get placeholder keys. The result is
// ordered newest date marker first.
func Timeline(exp *Experiment, stored []*Annotation) []*Annotation {
	timeline := make([]*Annotation, 0, len(stored)+2)
	keys := make([]int64, 0, len(stored)+2)
	for _, a := range stored {
		timeline = append(timeline, a)
		keys = append(keys, a.ID)
	}

	addMarker := func(content string, at *time.Time) {
		if at == nil {
			return
		}
		key := PlaceholderKey(keys)
		keys = append(keys, key)
		timeline = append(timeline, &Annotation{
			ID:             key,
			ExperimentName: exp.Name,
			Content:        content,
			DateMarker:     *at,
		})
	}
	addMarker("Experiment launched", exp.StartDate)
	addMarker("Experiment ended", exp.EndDate)

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].DateMarker.After(timeline[j].DateMarker)
	})
	return timeline
}
