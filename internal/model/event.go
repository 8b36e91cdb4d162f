package model

import (
	"slices"
	"time"
)

// Event is a single normalized calendar entry.
//
// Start and End are always absolute UTC instants. The zone that the feed used
// to express the wall-clock time is carried separately in Timezone and is only
// applied when displaying the event.
type Event struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	Summary     string `json:"summary"`
	Location    string `json:"location"`
	Description string `json:"description"`

	// Timezone is an IANA zone name. Empty means UTC.
	Timezone string `json:"timezone,omitempty"`

	AllDay bool `json:"allDay,omitempty"`
}

// Zone returns the display location of the event. Unknown or empty zone
// names resolve to UTC.
func (e Event) Zone() *time.Location {
	return LoadZone(e.Timezone)
}

// LocalStart is Start expressed in the event's own zone.
func (e Event) LocalStart() time.Time {
	return e.Start.In(e.Zone())
}

// LoadZone resolves an IANA name, falling back to UTC when the name is empty
// or unknown.
func LoadZone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SortByStart orders events ascending by Start, keeping the input order of
// events that start at the same instant.
func SortByStart(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int { return a.Start.Compare(b.Start) })
}
