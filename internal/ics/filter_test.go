package ics

import (
	"testing"
	"time"

	"weekcal/internal/model"
)

func TestFilter_StrictBounds(t *testing.T) {
	w := model.NewWindow(
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC),
		time.UTC,
	)

	atStart := model.Event{Summary: "at start", Start: w.Start}
	inside := model.Event{Summary: "inside", Start: w.Start.Add(time.Nanosecond)}
	lastDay := model.Event{Summary: "last day", Start: time.Date(2025, 1, 19, 22, 0, 0, 0, time.UTC)}
	atEnd := model.Event{Summary: "at end", Start: w.End}
	before := model.Event{Summary: "before", Start: w.Start.Add(-time.Hour)}
	after := model.Event{Summary: "after", Start: w.End.Add(time.Hour)}

	in := []model.Event{before, atStart, inside, lastDay, atEnd, after}
	got := FilterWindow(in, w)

	if len(got) != 2 || got[0].Summary != "inside" || got[1].Summary != "last day" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if len(in) != 6 || in[0].Summary != "before" {
		t.Fatal("input slice was modified")
	}
}

func TestFilter_Empty(t *testing.T) {
	got := Filter(nil, time.Now(), time.Now().Add(time.Hour))
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
