package ics

import (
	"testing"
	"time"

	"weekcal/internal/model"
)

func TestExpand_WeeklyRuleKeepsWallClockAcrossDST(t *testing.T) {
	raw := calendar(
		[]string{"X-WR-TIMEZONE:America/New_York"},
		[]string{
			"UID:weekly",
			"SUMMARY:Weekly stream",
			"DTSTART:20250303T100000",
			"DTEND:20250303T120000",
			"RRULE:FREQ=WEEKLY;COUNT=4",
			"EXDATE:20250317T100000",
		},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := model.NewWindow(
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		time.UTC,
	)
	got := Expand(cal.Events, ExpandConfig{Window: w})

	want := []time.Time{
		time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC),  // EST
		time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), // EDT
		time.Date(2025, 3, 24, 14, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d: %+v", len(want), len(got), got)
	}
	for i, ev := range got {
		if !ev.Start.Equal(want[i]) {
			t.Errorf("occurrence %d start = %v, want %v", i, ev.Start, want[i])
		}
		if ev.End.Sub(ev.Start) != 2*time.Hour {
			t.Errorf("occurrence %d duration = %v", i, ev.End.Sub(ev.Start))
		}
		if ev.Summary != "Weekly stream" || ev.Timezone != "America/New_York" {
			t.Errorf("occurrence %d lost fields: %+v", i, ev)
		}
	}
}

func TestExpand_CapAndPassThrough(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:daily", "DTSTART:20250101T090000Z", "RRULE:FREQ=DAILY"},
		[]string{"UID:single", "DTSTART:20240101T090000Z"},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := model.NewWindow(
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		time.UTC,
	)
	got := Expand(cal.Events, ExpandConfig{Window: w, MaxOccurrencesPerEvent: 5})

	if len(got) != 6 {
		t.Fatalf("expected 5 capped occurrences plus the single event, got %d", len(got))
	}
	if !got[0].Start.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("single event should come first after sorting, got %v", got[0].Start)
	}
}

func TestExpand_BadRuleKeepsEvent(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:bad", "DTSTART:20250101T090000Z", "RRULE:FREQ=SOMETIMES"},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := Expand(cal.Events, ExpandConfig{Window: model.CurrentWeek(time.Now(), time.UTC)})
	if len(got) != 1 {
		t.Fatalf("expected the base event to be kept, got %d", len(got))
	}
}

func TestExpand_OverrideReplacesMovedInstance(t *testing.T) {
	raw := calendar(nil,
		[]string{
			"UID:weekly",
			"SUMMARY:Weekly stream",
			"DTSTART:20250106T180000Z",
			"RRULE:FREQ=WEEKLY",
		},
		[]string{
			"UID:weekly",
			"SUMMARY:Weekly stream (moved)",
			"RECURRENCE-ID:20250113T180000Z",
			"DTSTART:20250114T200000Z",
		},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := model.NewWindow(
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC),
		time.UTC,
	)
	got := FilterWindow(Expand(cal.Events, ExpandConfig{Window: w}), w)

	if len(got) != 1 {
		t.Fatalf("expected 1 occurrence, got %d: %+v", len(got), got)
	}
	if want := time.Date(2025, 1, 14, 20, 0, 0, 0, time.UTC); !got[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", got[0].Start, want)
	}
	if got[0].Summary != "Weekly stream (moved)" {
		t.Errorf("summary = %q", got[0].Summary)
	}
}

func TestExpand_OverrideMovedIntoWindow(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:weekly", "SUMMARY:Weekly stream", "DTSTART:20250106T180000Z", "RRULE:FREQ=WEEKLY;COUNT=3"},
		[]string{
			"UID:weekly",
			"SUMMARY:Weekly stream (early)",
			"RECURRENCE-ID:20250120T180000Z",
			"DTSTART:20250117T180000Z",
		},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := model.NewWindow(
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC),
		time.UTC,
	)
	got := FilterWindow(Expand(cal.Events, ExpandConfig{Window: w}), w)

	want := []string{"Weekly stream", "Weekly stream (early)"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(got), got)
	}
	for i, ev := range got {
		if ev.Summary != want[i] {
			t.Errorf("event %d summary = %q, want %q", i, ev.Summary, want[i])
		}
	}
}

func TestExpand_CancelledOverrideDropsInstance(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:weekly", "SUMMARY:Weekly stream", "DTSTART:20250106T180000Z", "RRULE:FREQ=WEEKLY"},
		[]string{
			"UID:weekly",
			"SUMMARY:Weekly stream",
			"RECURRENCE-ID:20250113T180000Z",
			"DTSTART:20250113T180000Z",
			"STATUS:CANCELLED",
		},
		[]string{"UID:orphan", "SUMMARY:Detached", "RECURRENCE-ID:20250115T100000Z", "DTSTART:20250115T120000Z"},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := model.NewWindow(
		time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC),
		time.UTC,
	)
	got := FilterWindow(Expand(cal.Events, ExpandConfig{Window: w}), w)

	if len(got) != 1 || got[0].Summary != "Detached" {
		t.Fatalf("expected only the detached override, got %+v", got)
	}
}
