package ics

import (
	"time"

	"weekcal/internal/model"
)

// Filter returns the events whose start lies strictly between start and end.
// Events starting exactly on either bound are excluded. The input slice is
// not modified.
func Filter(events []model.Event, start, end time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if ev.Start.After(start) && ev.Start.Before(end) {
			out = append(out, ev)
		}
	}
	return out
}

// FilterWindow is Filter over a model.Window.
func FilterWindow(events []model.Event, w model.Window) []model.Event {
	return Filter(events, w.Start, w.End)
}
