// Package discord formats events as Discord message text.
package discord

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"weekcal/internal/model"
)

// DefaultPattern is the line template used when none is supplied.
const DefaultPattern = "- {timestamp} | **{summary}**{description}"

// Discord limits embed field values to 1024 characters.
const (
	MaxSectionLength = 1024
	ellipsis         = "..."
	untitled         = "Untitled Event"
	OtherSection     = "other"
)

// Timestamp returns the Discord full date/time token for t.
func Timestamp(ev model.Event) string {
	return fmt.Sprintf("<t:%d:F>", ev.Start.Unix())
}

// Line expands a pattern for one event. Supported placeholders are
// {timestamp}, {summary}, {description} and {location}; the last two expand
// to " | value" or nothing.
func Line(ev model.Event, pattern string) string {
	r := strings.NewReplacer(
		"{timestamp}", Timestamp(ev),
		"{summary}", ev.Summary,
		"{description}", suffix(ev.Description),
		"{location}", suffix(ev.Location),
	)
	return r.Replace(pattern)
}

// Format renders one line per event, in the given order.
func Format(events []model.Event, pattern string) string {
	if pattern == "" {
		pattern = DefaultPattern
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, Line(ev, pattern))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Section is one group of events sharing a location.
type Section struct {
	Key  string
	Name string
	Text string
}

// Group partitions events by lower-cased location. Events with no location
// land in the "other" section. The primary location comes first, "other"
// last, and everything else alphabetically in between. Section text longer
// than MaxSectionLength is cut and ends with "...".
func Group(events []model.Event, primary string) []Section {
	primary = strings.ToLower(strings.TrimSpace(primary))

	byKey := map[string][]model.Event{}
	for _, ev := range events {
		key := strings.ToLower(strings.TrimSpace(ev.Location))
		if key == "" {
			key = OtherSection
		}
		byKey[key] = append(byKey[key], ev)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if ra, rb := rank(a, primary), rank(b, primary); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})

	sections := make([]Section, 0, len(keys))
	for _, k := range keys {
		name := k
		if k == primary && primary != OtherSection {
			name = k + " streams"
		}
		sections = append(sections, Section{
			Key:  k,
			Name: name,
			Text: truncate(groupText(byKey[k]), MaxSectionLength),
		})
	}
	return sections
}

// FormatGrouped renders sections as bold-italic headings followed by their
// lines, separated by blank lines.
func FormatGrouped(sections []Section) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		blocks = append(blocks, "***"+s.Name+"***\n"+s.Text)
	}
	return strings.Join(blocks, "\n\n")
}

func rank(key, primary string) int {
	switch {
	case key == primary && primary != OtherSection:
		return 0
	case key == OtherSection:
		return 2
	default:
		return 1
	}
}

func groupText(events []model.Event) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		summary := ev.Summary
		if summary == "" {
			summary = untitled
		}
		lines = append(lines, Timestamp(ev)+" "+summary+suffix(ev.Description))
	}
	return strings.Join(lines, "\n")
}

func suffix(s string) string {
	if s == "" {
		return ""
	}
	return " | " + s
}

// truncate limits s to max characters including the trailing ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-len(ellipsis)]) + ellipsis
}
