// Package render draws a weekly.Week as an SVG document.
package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	svg "github.com/ajstarks/svgo"

	"weekcal/internal/weekly"
)

// Canvas geometry. The aspect ratio follows the 2700x4500 background art.
const (
	Width  = 375
	Height = 625

	baseFontPx     = 16
	titleFontPx    = 24
	rangeFontPx    = 18
	rowPadding     = 10
	rowRadius      = 10
	iconSize       = 22
	maxSummaryLine = 3
)

// Relative vertical positions on the canvas.
const (
	titleTop      = 0.10
	dateRangeTop  = 0.15
	scheduleTop   = 0.21
	scheduleSpan  = 0.73
	contentWidth  = 0.79
	rowHeightFrac = 1.0/7 - 0.02
)

// WriteSVG renders week into w.
func WriteSVG(w io.Writer, week weekly.Week, theme Theme, assets Assets) error {
	var buf bytes.Buffer
	draw(&buf, week, theme, assets)
	_, err := w.Write(buf.Bytes())
	return err
}

// SVG renders week and returns the document.
func SVG(week weekly.Week, theme Theme, assets Assets) []byte {
	var buf bytes.Buffer
	draw(&buf, week, theme, assets)
	return buf.Bytes()
}

func draw(w io.Writer, week weekly.Week, theme Theme, assets Assets) {
	canvas := svg.New(w)
	canvas.Start(Width, Height,
		fmt.Sprintf(`viewBox="0 0 %d %d"`, Width, Height),
		fmt.Sprintf(`font-family="%s"`, escapeAttr(theme.FontFamily)),
		fmt.Sprintf(`font-size="%dpx"`, baseFontPx),
	)

	if assets.Background != "" {
		canvas.Image(0, 0, Width, Height, assets.Background, `preserveAspectRatio="xMidYMid slice"`)
	} else {
		canvas.Rect(0, 0, Width, Height, "fill:"+theme.Canvas)
	}

	innerW := frac(Width, contentWidth)
	left := (Width - innerW) / 2
	center := Width / 2

	title := week.Title
	if title == "" {
		title = weekly.DefaultWeekTitle
	}
	canvas.Text(center, frac(Height, titleTop)+titleFontPx, title,
		fmt.Sprintf("text-anchor:middle;font-weight:bold;font-size:%dpx;fill:%s", titleFontPx, theme.HeaderColor))
	canvas.Text(center, frac(Height, dateRangeTop)+rangeFontPx, week.DateRange,
		fmt.Sprintf("text-anchor:middle;font-size:%dpx;fill:%s", rangeFontPx, theme.DateRangeColor))

	top := float64(frac(Height, scheduleTop))
	span := float64(frac(Height, scheduleSpan))
	rowH := span * rowHeightFrac
	gap := (span - rowH*float64(len(week.Slots))) / float64(len(week.Slots)-1)

	for i, slot := range week.Slots {
		y := int(top + float64(i)*(rowH+gap))
		drawSlot(canvas, slot, theme, assets, left, y, innerW, int(rowH))
	}

	canvas.End()
}

func drawSlot(canvas *svg.SVG, slot weekly.Slot, theme Theme, assets Assets, x, y, w, h int) {
	canvas.Roundrect(x, y, w, h, rowRadius, rowRadius, "fill:"+rowFill(slot, theme))

	mid := y + h/2
	labelPx := 1.2 * baseFontPx
	baseline := mid + int(labelPx/3)

	canvas.Text(x+rowPadding, baseline, slot.Day,
		fmt.Sprintf("font-weight:bold;font-size:1.2em;fill:%s", theme.DayColor))

	timeColor := theme.NoEventColor
	if !slot.Empty() {
		timeColor = theme.EventTextColor

		if href := assets.Icon(slot.Style.Icon); href != "" {
			canvas.Image(x+rowPadding+44, mid-iconSize/2, iconSize, iconSize, href)
		}

		lines := wrap(slot.Summary(), summaryLineRunes(slot.FontSize), maxSummaryLine)
		lineH := slot.FontSize * baseFontPx * 1.1
		first := float64(mid) - lineH*float64(len(lines)-1)/2 + slot.FontSize*baseFontPx/3
		for li, line := range lines {
			canvas.Text(x+w/2+12, int(first+float64(li)*lineH), line,
				fmt.Sprintf("text-anchor:middle;font-size:%.3fem;fill:%s", slot.FontSize, theme.EventTextColor))
		}
	}

	canvas.Text(x+w-rowPadding, baseline, slot.TimeLabel,
		fmt.Sprintf("text-anchor:end;font-size:1.2em;fill:%s", timeColor))
}

// frac returns f of total, truncated to whole pixels.
// rowFill is the slot's style color, replaced by the theme's event
// background for rows in the default bucket.
func rowFill(slot weekly.Slot, theme Theme) string {
	if slot.Bucket == weekly.DefaultLocation && theme.EventBackground != "" {
		return theme.EventBackground
	}
	return slot.Style.Background
}

func frac(total int, f float64) int {
	return int(float64(total) * f)
}

// summaryLineRunes estimates how many characters fit in the summary column at
// the given size.
func summaryLineRunes(fontSizeEm float64) int {
	n := int(16 / fontSizeEm)
	if n < 8 {
		n = 8
	}
	return n
}

// wrap splits s on spaces into at most maxLines lines of roughly width runes.
// Words longer than a line are broken; overflow is elided with "…".
func wrap(s string, width, maxLines int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	cur := ""
	flush := func() {
		lines = append(lines, cur)
		cur = ""
	}
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			if cur != "" {
				flush()
			}
			r := []rune(word)
			lines = append(lines, string(r[:width]))
			word = string(r[width:])
		}
		switch {
		case cur == "":
			cur = word
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= width:
			cur += " " + word
		default:
			flush()
			cur = word
		}
	}
	if cur != "" {
		flush()
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		last := []rune(lines[maxLines-1])
		if len(last) >= width {
			last = last[:width-1]
		}
		lines[maxLines-1] = string(last) + "…"
	}
	return lines
}

func escapeAttr(s string) string {
	return strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;").Replace(s)
}
