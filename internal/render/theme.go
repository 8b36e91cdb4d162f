package render

import (
	"maps"
	"slices"
	"strings"
)

// Theme holds the colors and font of a rendered schedule.
type Theme struct {
	Name           string
	FontFamily     string
	Canvas         string
	HeaderColor    string
	DateRangeColor string
	DayColor       string
	EventTextColor string
	NoEventColor   string

	// EventBackground fills rows whose location has no style of its own.
	// Empty keeps the configured default style.
	EventBackground string
}

var themes = map[string]Theme{
	"light": {
		Name:           "light",
		FontFamily:     "Lazydog",
		Canvas:         "#7fb4d8",
		HeaderColor:    "#ffffff",
		DateRangeColor: "#ffffff",
		DayColor:       "#ffffff",
		EventTextColor: "#ffffff",
		NoEventColor:   "#ffffff",
	},
	"dark": {
		Name:            "dark",
		FontFamily:      "Lazydog",
		Canvas:          "#1e1e1e",
		HeaderColor:     "#ffffff",
		DateRangeColor:  "#cccccc",
		DayColor:        "#ffffff",
		EventTextColor:  "#ffffff",
		NoEventColor:    "#777777",
		EventBackground: "#333333",
	},
}

// DefaultTheme is used when a requested theme does not exist.
const DefaultTheme = "light"

// ThemeByName looks a theme up case-insensitively.
func ThemeByName(name string) (Theme, bool) {
	t, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return themes[DefaultTheme], false
	}
	return t, true
}

// ThemeNames lists the available themes in lexical order.
func ThemeNames() []string {
	return slices.Sorted(maps.Keys(themes))
}
