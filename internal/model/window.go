package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDate is returned by ParseDate for values that match none of the
// accepted layouts.
var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Window is a day-aligned range. Start is 00:00 of the first day and End is
// the last instant of the final day, both in the zone the window was built in.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow aligns from to the start of its day and to to the end of its day,
// after converting both into loc.
func NewWindow(from, to time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	return Window{
		Start: StartOfDay(from.In(loc)),
		End:   EndOfDay(to.In(loc)),
	}
}

// CurrentWeek returns the Monday..Sunday window containing now.
func CurrentWeek(now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	// Monday is day 0 of the week here; time.Sunday is 0 in Go.
	offset := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -offset)
	return NewWindow(monday, monday.AddDate(0, 0, 6), loc)
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// ParseDate parses a calendar date supplied by a caller. Values without an
// explicit offset are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
