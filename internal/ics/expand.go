package ics

import (
	"errors"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Window bounds the occurrences that are generated.
	Window model.Window

	// MaxOccurrencesPerEvent caps a single RRULE. Zero selects the default.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed events into concrete events inside cfg.Window.
// Non-recurring events are passed through unchanged, whether or not they fall
// inside the window; callers still run Filter afterwards. An override VEVENT
// (one carrying RECURRENCE-ID) replaces the occurrence of its master that it
// reschedules; a cancelled override removes it. The result is ordered by
// start.
func Expand(events []ParsedEvent, cfg ExpandConfig) []model.Event {
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	masters := make(map[string]bool)
	for _, ev := range events {
		if ev.RRule != "" && !ev.IsOverride() {
			masters[ev.UID] = true
		}
	}
	overridesByUID := make(map[string][]ParsedEvent)

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		switch {
		case ev.IsOverride() && masters[ev.UID]:
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		case ev.IsOverride():
			// No master in this feed; the override stands on its own.
			if !ev.Cancelled {
				out = append(out, ev.Event)
			}
		case ev.RRule == "":
			out = append(out, ev.Event)
		}
	}

	for _, ev := range events {
		if ev.RRule == "" || ev.IsOverride() {
			continue
		}
		out = append(out, expandRecurring(ev, overridesByUID[ev.UID], cfg)...)
	}

	model.SortByStart(out)
	return out
}

// findOverride returns the override whose RECURRENCE-ID is start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE; keeping first instance", err, "uid", ev.UID, "rrule", ev.RRule)
		out := []model.Event{ev.Event}
		for _, ov := range overrides {
			if !ov.Cancelled {
				out = append(out, ov.Event)
			}
		}
		return out
	}

	loc := ev.loc
	if loc == nil {
		loc = time.UTC
	}

	// DTSTART in the event's own zone keeps the local wall clock steady
	// across DST transitions.
	r.DTStart(ev.Start.In(loc))

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(loc))
	}

	occTimes := set.Between(cfg.Window.Start.In(loc), cfg.Window.End.In(loc), true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		appLog.Error("expand: truncated occurrences for UID due to cap",
			errors.New("max occurrences reached"),
			"uid", ev.UID,
			"cap", cfg.MaxOccurrencesPerEvent,
		)
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(occTimes))
	for _, occStart := range occTimes {
		if ov, ok := findOverride(overrides, occStart); ok {
			if !ov.Cancelled {
				out = append(out, ov.Event)
			}
			continue
		}
		occ := ev.Event
		occ.Start = occStart.UTC()
		occ.End = occStart.Add(dur).UTC()
		out = append(out, occ)
	}

	// An instance whose original slot lies outside the window may have been
	// moved into it.
	for _, ov := range overrides {
		if ov.Cancelled || slices.ContainsFunc(occTimes, func(t time.Time) bool { return t.Equal(*ov.RecurrenceID) }) {
			continue
		}
		if ov.RecurrenceID.Before(cfg.Window.Start) || ov.RecurrenceID.After(cfg.Window.End) {
			out = append(out, ov.Event)
		}
	}
	return out
}
