package model

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestParseDate(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-01-13", time.Date(2025, 1, 13, 0, 0, 0, 0, berlin)},
		{"2025-01-13T09:30", time.Date(2025, 1, 13, 9, 30, 0, 0, berlin)},
		{"2025-01-13T09:30:15", time.Date(2025, 1, 13, 9, 30, 15, 0, berlin)},
		{"2025-01-13T09:30:15Z", time.Date(2025, 1, 13, 9, 30, 15, 0, time.UTC)},
		{" 2025-01-13 ", time.Date(2025, 1, 13, 0, 0, 0, 0, berlin)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, berlin)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "13.01.2025", "tomorrow", "2025-13-01"} {
		if _, err := ParseDate(bad, berlin); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("ParseDate(%q) error = %v, want ErrInvalidDate", bad, err)
		}
	}
}

func TestNewWindow_DayAligned(t *testing.T) {
	from := time.Date(2025, 1, 13, 17, 45, 0, 0, time.UTC)
	to := time.Date(2025, 1, 19, 3, 0, 0, 0, time.UTC)

	w := NewWindow(from, to, nil)

	if want := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", w.Start, want)
	}
	if want := time.Date(2025, 1, 19, 23, 59, 59, 999999999, time.UTC); !w.End.Equal(want) {
		t.Errorf("End = %v, want %v", w.End, want)
	}
}

func TestCurrentWeek(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{"monday", time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)},
		{"thursday", time.Date(2025, 1, 16, 12, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2025, 1, 19, 23, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := CurrentWeek(tt.now, time.UTC)
			if want := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
				t.Errorf("Start = %v, want %v", w.Start, want)
			}
			if want := time.Date(2025, 1, 19, 23, 59, 59, 999999999, time.UTC); !w.End.Equal(want) {
				t.Errorf("End = %v, want %v", w.End, want)
			}
		})
	}
}

func TestEvent_LocalStart(t *testing.T) {
	ev := Event{Start: time.Date(2025, 7, 1, 20, 0, 0, 0, time.UTC), Timezone: "America/New_York"}
	if got := ev.LocalStart().Hour(); got != 16 {
		t.Errorf("LocalStart hour = %d, want 16", got)
	}

	ev.Timezone = "Not/AZone"
	if ev.Zone() != time.UTC {
		t.Errorf("unknown zone should fall back to UTC, got %v", ev.Zone())
	}
}

func TestSortByStart_Stable(t *testing.T) {
	at := time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Start: at.Add(time.Hour), Summary: "late"},
		{Start: at, Summary: "first"},
		{Start: at, Summary: "second"},
	}
	SortByStart(events)

	got := []string{events[0].Summary, events[1].Summary, events[2].Summary}
	want := []string{"first", "second", "late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
