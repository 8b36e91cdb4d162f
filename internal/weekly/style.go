package weekly

import "strings"

// DefaultLocation is the bucket of events without a styled location, and of
// empty slots.
const DefaultLocation = "default"

// Style is the visual treatment of one slot.
type Style struct {
	Background string `yaml:"background" json:"background"`
	// Icon is a file path or URL; empty means no icon.
	Icon string `yaml:"icon" json:"icon"`
}

// Styles maps a lower-case location tag onto a Style.
type Styles struct {
	ByLocation map[string]Style
	Default    Style
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	return Styles{
		ByLocation: map[string]Style{
			"twitch":  {Background: "#eebd37", Icon: "./static/twitch-icon.svg"},
			"discord": {Background: "#f3af52", Icon: "./static/discord-icon.svg"},
		},
		Default: Style{Background: "#e6d195"},
	}
}

// For returns the style for a location tag. Matching ignores case and
// surrounding whitespace; unknown or empty tags get the default style.
func (s Styles) For(location string) Style {
	st, _ := s.Lookup(location)
	return st
}

// Lookup is For that also reports the bucket the tag landed in: the
// lower-cased tag when it has its own style, DefaultLocation otherwise.
func (s Styles) Lookup(location string) (Style, string) {
	key := strings.ToLower(strings.TrimSpace(location))
	if key == "" {
		return s.Default, DefaultLocation
	}
	if st, ok := s.ByLocation[key]; ok {
		return st, key
	}
	return s.Default, DefaultLocation
}
