package ics

import (
	"strings"
	_ "time/tzdata"
)

// calendar joins lines with CRLF and wraps them in a VCALENDAR block.
func calendar(header []string, events ...[]string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//weekcal//test//EN"}
	lines = append(lines, header...)
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, ev...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}
