package ics

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// ErrEmptyCalendar is returned for an empty payload.
var ErrEmptyCalendar = errors.New("empty ICS body")

const (
	layoutUTC   = "20060102T150405Z"
	layoutLocal = "20060102T150405"
	layoutDate  = "20060102"

	propCalendarTimezone = "X-WR-TIMEZONE"
)

// Warning is a non-fatal diagnostic produced while normalizing a calendar,
// typically a zone name that could not be resolved.
type Warning struct {
	UID     string
	Summary string
	Zone    string
	Message string
}

func (w Warning) String() string {
	if w.Zone != "" {
		return fmt.Sprintf("%s (zone %q, uid %q)", w.Message, w.Zone, w.UID)
	}
	return fmt.Sprintf("%s (uid %q)", w.Message, w.UID)
}

// ParsedEvent is a normalized VEVENT plus the recurrence data needed by
// Expand.
type ParsedEvent struct {
	model.Event

	UID     string
	RRule   string
	ExDates []time.Time

	// RecurrenceID is the original start of the instance this VEVENT
	// replaces. Nil for masters and single events.
	RecurrenceID *time.Time
	// Cancelled marks STATUS:CANCELLED.
	Cancelled bool

	// loc is the zone the wall-clock fields were interpreted in. Recurrence
	// expansion runs in this zone so that DST shifts keep the wall clock.
	loc *time.Location
}

// Calendar is the outcome of Parse.
type Calendar struct {
	// Timezone is the calendar-wide X-WR-TIMEZONE value, if any.
	Timezone string
	// Events are sorted ascending by Start.
	Events   []ParsedEvent
	Warnings []Warning
}

// IsOverride reports whether ev reschedules one instance of a recurring event.
func (ev ParsedEvent) IsOverride() bool {
	return ev.RecurrenceID != nil
}

// Base returns the events without recurrence expansion.
func (c *Calendar) Base() []model.Event {
	out := make([]model.Event, 0, len(c.Events))
	for _, ev := range c.Events {
		out = append(out, ev.Event)
	}
	return out
}

// Normalize turns a raw iCalendar payload into events ordered by start.
// Timezone problems are reported as warnings; they never drop an event.
func Normalize(raw []byte) ([]model.Event, []Warning, error) {
	cal, err := Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return cal.Base(), cal.Warnings, nil
}

// Parse parses raw into a Calendar.
//
// Zone resolution for each event, in order: the TZID parameter of DTSTART,
// the calendar's X-WR-TIMEZONE, UTC. Values carrying a trailing Z are
// absolute and are never shifted again.
func Parse(raw []byte) (*Calendar, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyCalendar
	}

	parsed, err := ical.ParseCalendar(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ics parse: %w", err)
	}

	cal := &Calendar{}
	cal.Timezone = calendarTimezone(parsed)

	calLoc := time.UTC
	calZone := ""
	if cal.Timezone != "" {
		loc, lerr := time.LoadLocation(cal.Timezone)
		if lerr != nil {
			cal.Warnings = append(cal.Warnings, Warning{
				Zone:    cal.Timezone,
				Message: "unknown calendar timezone; treating times as UTC",
			})
		} else {
			calLoc = loc
			calZone = cal.Timezone
		}
	}
	fallback := zoneRef{name: calZone, loc: calLoc}

	for _, ve := range parsed.Events() {
		ev, warns, perr := parseVEvent(ve, fallback)
		cal.Warnings = append(cal.Warnings, warns...)
		if perr != nil {
			cal.Warnings = append(cal.Warnings, Warning{
				UID:     propValue(ve, ical.ComponentPropertyUniqueId),
				Summary: propValue(ve, ical.ComponentPropertySummary),
				Message: "skipped event: " + perr.Error(),
			})
			continue
		}
		cal.Events = append(cal.Events, ev)
	}

	slices.SortStableFunc(cal.Events, func(a, b ParsedEvent) int {
		return a.Start.Compare(b.Start)
	})

	for _, w := range cal.Warnings {
		appLog.Warn("ics normalize warning", "warning", w.String())
	}
	appLog.Debug("ics parse completed", "event_count", len(cal.Events), "calendar_tz", cal.Timezone)
	return cal, nil
}

// calendarTimezone returns the X-WR-TIMEZONE calendar property.
func calendarTimezone(cal *ical.Calendar) string {
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, propCalendarTimezone) {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

type zoneRef struct {
	name string
	loc  *time.Location
}

func parseVEvent(ve *ical.VEvent, fallback zoneRef) (ParsedEvent, []Warning, error) {
	var out ParsedEvent
	var warns []Warning

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	out.Summary = unescapeText(propValue(ve, ical.ComponentPropertySummary))
	out.Location = unescapeText(propValue(ve, ical.ComponentPropertyLocation))
	out.Description = unescapeText(propValue(ve, ical.ComponentPropertyDescription))

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return out, warns, errors.New("missing DTSTART")
	}

	zone, w := resolveZone(dtStart.ICalParameters, fallback)
	if w != nil {
		w.UID, w.Summary = out.UID, out.Summary
		warns = append(warns, *w)
	}

	start, allDay, err := parseICSTime(dtStart.Value, dtStart.ICalParameters, zone.loc)
	if err != nil {
		return out, warns, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start.UTC()
	out.AllDay = allDay
	out.Timezone = zone.name
	out.loc = zone.loc

	end, err := parseEnd(ve, start, allDay, fallback, zone)
	if err != nil {
		// A broken DTEND is not worth losing the event for.
		warns = append(warns, Warning{UID: out.UID, Summary: out.Summary, Message: "ignored invalid end: " + err.Error()})
		end = start
	}
	out.End = end.UTC()

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = strings.TrimSpace(p.Value)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil && strings.TrimSpace(p.Value) != "" {
		ridZone := zone
		if _, ok := p.ICalParameters["TZID"]; ok {
			ridZone, _ = resolveZone(p.ICalParameters, fallback)
		}
		if t, _, err := parseICSTime(p.Value, p.ICalParameters, ridZone.loc); err == nil {
			rid := t.UTC()
			out.RecurrenceID = &rid
		} else {
			warns = append(warns, Warning{UID: out.UID, Summary: out.Summary, Message: "ignored invalid RECURRENCE-ID: " + err.Error()})
		}
	}
	out.Cancelled = strings.EqualFold(strings.TrimSpace(propValue(ve, ical.ComponentPropertyStatus)), "CANCELLED")

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exZone := zone
		if _, ok := p.ICalParameters["TZID"]; ok {
			exZone, _ = resolveZone(p.ICalParameters, zone)
		}
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseICSTime(part, p.ICalParameters, exZone.loc); err == nil {
				out.ExDates = append(out.ExDates, t.UTC())
			}
		}
	}

	return out, warns, nil
}

// resolveZone picks the zone a wall-clock value is expressed in. An unknown
// TZID yields UTC with an empty name and a warning, so the raw wall clock is
// kept unconverted.
func resolveZone(params map[string][]string, fallback zoneRef) (zoneRef, *Warning) {
	tzid := cleanTZID(firstParam(params, "TZID"))
	if tzid == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return zoneRef{name: "", loc: time.UTC}, &Warning{
			Zone:    tzid,
			Message: "unknown event timezone; kept raw time",
		}
	}
	return zoneRef{name: tzid, loc: loc}, nil
}

func parseEnd(ve *ical.VEvent, start time.Time, allDay bool, fallback, startZone zoneRef) (time.Time, error) {
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil && strings.TrimSpace(p.Value) != "" {
		zone := startZone
		if _, ok := p.ICalParameters["TZID"]; ok {
			zone, _ = resolveZone(p.ICalParameters, fallback)
		}
		end, _, err := parseICSTime(p.Value, p.ICalParameters, zone.loc)
		return end, err
	}
	if p := ve.GetProperty(ical.ComponentProperty("DURATION")); p != nil && strings.TrimSpace(p.Value) != "" {
		d, err := parseDuration(p.Value)
		if err != nil {
			return start, err
		}
		return start.Add(d), nil
	}
	if allDay {
		return start.AddDate(0, 0, 1), nil
	}
	return start, nil
}

// parseICSTime parses DATE and DATE-TIME values. Floating and date values are
// interpreted in loc; UTC values ignore it.
func parseICSTime(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	if loc == nil {
		loc = time.UTC
	}

	isDate := strings.EqualFold(firstParam(params, "VALUE"), "DATE") || !strings.Contains(v, "T")
	if isDate {
		t, err := time.ParseInLocation(layoutDate, v[:min(len(v), len(layoutDate))], loc)
		return t, true, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(layoutUTC, v)
		return t, false, err
	}
	t, err := time.ParseInLocation(layoutLocal, v, loc)
	return t, false, err
}

// parseDuration handles the RFC 5545 dur-value grammar: [+-]P[nW][nD][T[nH][nM][nS]].
func parseDuration(v string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r == 'T':
			inTime = true
		case r >= '0' && r <= '9':
			num += string(r)
		default:
			if num == "" {
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, err
			}
			num = ""
			unit, ok := durationUnit(r, inTime)
			if !ok {
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			total += time.Duration(n) * unit
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}

func durationUnit(r rune, inTime bool) (time.Duration, bool) {
	if inTime {
		switch r {
		case 'H':
			return time.Hour, true
		case 'M':
			return time.Minute, true
		case 'S':
			return time.Second, true
		}
		return 0, false
	}
	switch r {
	case 'W':
		return 7 * 24 * time.Hour, true
	case 'D':
		return 24 * time.Hour, true
	}
	return 0, false
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func firstParam(params map[string][]string, key string) string {
	if params == nil {
		return ""
	}
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// cleanTZID strips quoting and the leading slash some producers use for
// globally unique zone ids ("/Europe/Berlin").
func cleanTZID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimPrefix(s, "/")
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return textUnescaper.Replace(s)
}
