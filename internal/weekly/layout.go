// Package weekly maps events onto a fixed Monday..Sunday grid and computes
// the per-slot display attributes. It produces data only; drawing is done by
// the render package.
package weekly

import (
	"slices"
	"time"
	"unicode/utf8"

	"weekcal/internal/model"
)

// NoEvent is the time label of an empty slot.
const NoEvent = "No event"

// DefaultWeekTitle heads the rendered schedule.
const DefaultWeekTitle = "Stream Schedule"

// Font size curve, in em.
const (
	FontSizeMax     = 1.1
	FontSizeMin     = 0.55
	FontShrinkStart = 10
	FontShrinkEnd   = 50
)

const (
	dateRangeLayout = "02.01."
	timeOfDayLayout = "3PM"
	defaultDayCount = 7
)

// Days are the slot labels in display order.
var Days = [defaultDayCount]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

var dayIndex = map[time.Weekday]int{
	time.Monday:    0,
	time.Tuesday:   1,
	time.Wednesday: 2,
	time.Thursday:  3,
	time.Friday:    4,
	time.Saturday:  5,
	time.Sunday:    6,
}

// Slot is one weekday cell.
type Slot struct {
	Day string

	// Event is nil when nothing is scheduled that day.
	Event *model.Event

	Style     Style
	FontSize  float64
	TimeLabel string

	// Bucket is the styled location tag, or DefaultLocation.
	Bucket string
}

// Empty reports whether the slot has no event.
func (s Slot) Empty() bool {
	return s.Event == nil
}

// Summary returns the event summary or "".
func (s Slot) Summary() string {
	if s.Event == nil {
		return ""
	}
	return s.Event.Summary
}

// Week is the complete layout handed to the renderer.
type Week struct {
	Title     string
	DateRange string
	Start     time.Time
	End       time.Time
	Slots     [defaultDayCount]Slot
}

// Build lays events out over a Monday..Sunday week. For every weekday the
// earliest event whose start falls on that weekday, in the event's own zone,
// fills the slot. Further events on the same weekday are not shown.
func Build(events []model.Event, weekStart, weekEnd time.Time, styles Styles) Week {
	sorted := slices.Clone(events)
	model.SortByStart(sorted)

	w := Week{
		Title:     DefaultWeekTitle,
		DateRange: weekStart.Format(dateRangeLayout) + " - " + weekEnd.Format(dateRangeLayout),
		Start:     weekStart,
		End:       weekEnd,
	}

	for i, day := range Days {
		w.Slots[i] = Slot{
			Day:       day,
			Style:     styles.Default,
			Bucket:    DefaultLocation,
			FontSize:  FontSizeMax,
			TimeLabel: NoEvent,
		}
	}

	for i := range sorted {
		ev := sorted[i]
		idx := dayIndex[ev.LocalStart().Weekday()]
		if w.Slots[idx].Event != nil {
			continue
		}
		w.Slots[idx].Event = &ev
		w.Slots[idx].Style, w.Slots[idx].Bucket = styles.Lookup(ev.Location)
		w.Slots[idx].FontSize = FontSize(ev.Summary)
		w.Slots[idx].TimeLabel = TimeLabel(ev)
	}

	return w
}

// FontSize shrinks linearly from FontSizeMax to FontSizeMin as the summary
// grows from FontShrinkStart to FontShrinkEnd characters.
func FontSize(summary string) float64 {
	n := utf8.RuneCountInString(summary)
	switch {
	case n <= FontShrinkStart:
		return FontSizeMax
	case n >= FontShrinkEnd:
		return FontSizeMin
	}
	ratio := float64(n-FontShrinkStart) / float64(FontShrinkEnd-FontShrinkStart)
	return FontSizeMax - ratio*(FontSizeMax-FontSizeMin)
}

// TimeLabel formats the event start as an hour with AM/PM marker in the
// event's own zone, e.g. "3PM".
func TimeLabel(ev model.Event) string {
	return ev.LocalStart().Format(timeOfDayLayout)
}
