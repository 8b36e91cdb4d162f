package ics

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"weekcal/internal/model"
)

func TestNormalize_CalendarTimezoneFallback(t *testing.T) {
	raw := calendar(
		[]string{"X-WR-TIMEZONE:America/New_York"},
		[]string{"UID:dst", "SUMMARY:After DST", "DTSTART:20250310T100000", "DTEND:20250310T110000"},
		[]string{"UID:std", "SUMMARY:Before DST", "DTSTART:20250303T100000", "DTEND:20250303T110000"},
	)

	events, warns, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warns) != 0 {
		t.Fatalf("expected no warnings, got %v", warns)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Sorted ascending: the standard-time event comes first.
	if got, want := events[0].Start, time.Date(2025, 3, 3, 15, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("standard time start = %v, want %v", got, want)
	}
	if got, want := events[1].Start, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("daylight time start = %v, want %v", got, want)
	}
	for _, ev := range events {
		if ev.Timezone != "America/New_York" {
			t.Errorf("timezone = %q, want America/New_York", ev.Timezone)
		}
		if ev.Start.Location() != time.UTC {
			t.Errorf("start not stored in UTC: %v", ev.Start.Location())
		}
	}
}

func TestNormalize_EventZoneWinsOverCalendarZone(t *testing.T) {
	raw := calendar(
		[]string{"X-WR-TIMEZONE:America/New_York"},
		[]string{"UID:berlin", "SUMMARY:Berlin", "DTSTART;TZID=/Europe/Berlin:20250115T200000", "DTEND;TZID=Europe/Berlin:20250115T210000"},
	)

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []model.Event{{
		Start:    time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC),
		End:      time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC),
		Summary:  "Berlin",
		Timezone: "Europe/Berlin",
	}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_UTCValuesAreNotShifted(t *testing.T) {
	raw := calendar(
		[]string{"X-WR-TIMEZONE:Asia/Tokyo"},
		[]string{"UID:z", "SUMMARY:Zulu", "DTSTART:20250115T120000Z", "DTEND:20250115T130000Z", "LOCATION:twitch"},
	)

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if !ev.Start.Equal(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("start shifted: %v", ev.Start)
	}
	// Display zone still comes from the calendar.
	if ev.Timezone != "Asia/Tokyo" {
		t.Errorf("timezone = %q, want Asia/Tokyo", ev.Timezone)
	}
	if ev.Location != "twitch" {
		t.Errorf("location = %q, want twitch", ev.Location)
	}
}

func TestNormalize_NoZoneAnywhereIsUTC(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:f", "SUMMARY:Floating", "DTSTART:20250115T090000", "DTEND:20250115T100000"},
	)

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := events[0].Start; !got.Equal(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v, want 09:00 UTC", got)
	}
	if events[0].Timezone != "" {
		t.Errorf("timezone = %q, want empty", events[0].Timezone)
	}
}

func TestNormalize_UnknownZoneKeepsRawTime(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:bad", "SUMMARY:Windows zone", "DTSTART;TZID=Eastern Standard Time:20250115T090000", "DTEND;TZID=Eastern Standard Time:20250115T100000"},
		[]string{"UID:ok", "SUMMARY:Fine", "DTSTART:20250116T090000Z"},
	)

	events, warns, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected both events to survive, got %d", len(events))
	}
	if got := events[0].Start; !got.Equal(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("raw wall clock not kept: %v", got)
	}
	if events[0].Timezone != "" {
		t.Errorf("unresolved zone should not be carried, got %q", events[0].Timezone)
	}
	if len(warns) == 0 {
		t.Fatal("expected a timezone warning")
	}
	if warns[0].Zone != "Eastern Standard Time" || warns[0].UID != "bad" {
		t.Errorf("unexpected warning: %+v", warns[0])
	}
}

func TestNormalize_DefaultsAndTextFields(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:1", "DTSTART:20250115T090000Z"},
		[]string{"UID:2", "DTSTART:20250116T090000Z", `SUMMARY:Q&A\, part 2`, `DESCRIPTION:line one\nline two`},
	)

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if events[0].Summary != "" || events[0].Location != "" || events[0].Description != "" {
		t.Errorf("expected empty defaults, got %+v", events[0])
	}
	if !events[0].End.Equal(events[0].Start) {
		t.Errorf("end without DTEND should equal start, got %v", events[0].End)
	}
	if events[1].Summary != "Q&A, part 2" {
		t.Errorf("summary = %q", events[1].Summary)
	}
	if events[1].Description != "line one\nline two" {
		t.Errorf("description = %q", events[1].Description)
	}
}

func TestNormalize_DurationAndAllDay(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:d", "DTSTART:20250115T090000Z", "DURATION:PT1H30M"},
		[]string{"UID:a", "DTSTART;VALUE=DATE:20250120"},
	)

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := events[0].End.Sub(events[0].Start); got != 90*time.Minute {
		t.Errorf("duration = %v, want 1h30m", got)
	}
	if !events[1].AllDay {
		t.Error("expected all-day flag")
	}
	if got := events[1].End.Sub(events[1].Start); got != 24*time.Hour {
		t.Errorf("all-day length = %v, want 24h", got)
	}
}

func TestNormalize_SkipsNonEventComponents(t *testing.T) {
	raw := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\n" +
		"BEGIN:VTODO\r\nUID:todo\r\nSUMMARY:Not an event\r\nDTSTART:20250115T090000Z\r\nEND:VTODO\r\n" +
		"BEGIN:VEVENT\r\nUID:ev\r\nSUMMARY:Event\r\nDTSTART:20250115T100000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n")

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Summary != "Event" {
		t.Fatalf("expected only the VEVENT, got %+v", events)
	}
}

func TestNormalize_MissingStartIsSkipped(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:nostart", "SUMMARY:Broken"},
		[]string{"UID:ok", "SUMMARY:Fine", "DTSTART:20250115T090000Z"},
	)

	events, warns, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if len(warns) != 1 {
		t.Fatalf("expected 1 warning, got %v", warns)
	}
}

func TestParse_RecurrenceIDAndStatus(t *testing.T) {
	raw := calendar(
		[]string{"X-WR-TIMEZONE:America/New_York"},
		[]string{"UID:a", "SUMMARY:Master", "DTSTART:20250113T100000", "RRULE:FREQ=WEEKLY"},
		[]string{
			"UID:a",
			"SUMMARY:Moved",
			"RECURRENCE-ID;TZID=Europe/Berlin:20250120T160000",
			"DTSTART:20250121T100000",
			"STATUS:CANCELLED",
		},
	)
	cal, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cal.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(cal.Events))
	}

	master, moved := cal.Events[0], cal.Events[1]
	if master.IsOverride() || master.Cancelled {
		t.Errorf("master parsed as override/cancelled: %+v", master)
	}
	if !moved.IsOverride() {
		t.Fatal("expected RECURRENCE-ID to be captured")
	}
	// 16:00 Berlin is 15:00 UTC, regardless of the calendar zone.
	if want := time.Date(2025, 1, 20, 15, 0, 0, 0, time.UTC); !moved.RecurrenceID.Equal(want) {
		t.Errorf("RecurrenceID = %v, want %v", moved.RecurrenceID, want)
	}
	if !moved.Cancelled {
		t.Error("expected STATUS:CANCELLED to be captured")
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, _, err := Normalize(nil); !errors.Is(err, ErrEmptyCalendar) {
		t.Fatalf("expected ErrEmptyCalendar, got %v", err)
	}
}

// Formatting a start in its own zone and reading it back must give the same
// UTC instant.
func TestNormalize_RoundTrip(t *testing.T) {
	raw := calendar(nil,
		[]string{"UID:1", "DTSTART;TZID=America/Los_Angeles:20251102T013000"},
		[]string{"UID:2", "DTSTART;TZID=Australia/Sydney:20250406T023000"},
		[]string{"UID:3", "DTSTART;TZID=Asia/Kolkata:20250601T183000"},
	)

	events, _, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, ev := range events {
		loc := ev.Zone()
		wall := ev.Start.In(loc).Format(layoutLocal)
		back, err := time.ParseInLocation(layoutLocal, wall, loc)
		if err != nil {
			t.Fatalf("parse back: %v", err)
		}
		if !back.Equal(ev.Start) {
			t.Errorf("round trip for %s: got %v, want %v", ev.Timezone, back.UTC(), ev.Start)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "PT1H", want: time.Hour},
		{in: "P1D", want: 24 * time.Hour},
		{in: "P1W", want: 7 * 24 * time.Hour},
		{in: "P1DT2H3M4S", want: 26*time.Hour + 3*time.Minute + 4*time.Second},
		{in: "-PT15M", want: -15 * time.Minute},
		{in: "1H", wantErr: true},
		{in: "PTH", wantErr: true},
		{in: "P1X", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
