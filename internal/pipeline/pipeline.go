// Package pipeline joins the calendar stages for a single request:
// fetch, normalize, expand, filter, and then layout or text formatting.
// A Service holds configuration only; nothing is cached between calls.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"weekcal/internal/apperror"
	"weekcal/internal/discord"
	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/render"
	"weekcal/internal/weekly"
)

// Query parameter names.
const (
	ParamURL       = "url"
	ParamStartDate = "startDate"
	ParamEndDate   = "endDate"
)

// Fetcher retrieves a raw calendar document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Options configures a Service. Zero values are usable.
type Options struct {
	// Location aligns request dates to day boundaries. Nil means UTC.
	Location *time.Location

	ExpandRecurring bool
	MaxOccurrences  int

	Title           string
	Styles          weekly.Styles
	Assets          render.Assets
	DefaultTheme    string
	PrimaryLocation string
}

// Request is a validated calendar request.
type Request struct {
	URL    string
	Window model.Window
}

type Service struct {
	fetcher Fetcher
	opts    Options

	eventsFetched metric.Int64Counter
	tzWarnings    metric.Int64Counter
}

// New builds a Service. Counters are registered on the global meter provider.
func New(fetcher Fetcher, opts Options) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("pipeline: fetcher is nil")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Title == "" {
		opts.Title = weekly.DefaultWeekTitle
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = render.DefaultTheme
	}
	if opts.Styles.ByLocation == nil && opts.Styles.Default.Background == "" {
		opts.Styles = weekly.DefaultStyles()
	}

	meter := otel.Meter("weekcal/pipeline")
	eventsFetched, err := meter.Int64Counter(
		"weekcal.events.fetched",
		metric.WithDescription("Events returned after filtering"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create events counter: %w", err)
	}
	tzWarnings, err := meter.Int64Counter(
		"weekcal.normalize.warnings",
		metric.WithDescription("Non-fatal normalization warnings, mostly unknown time zones"),
		metric.WithUnit("{warning}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create warnings counter: %w", err)
	}

	return &Service{
		fetcher:       fetcher,
		opts:          opts,
		eventsFetched: eventsFetched,
		tzWarnings:    tzWarnings,
	}, nil
}

// ParseRequest validates url, startDate and endDate. Presence is checked for
// all three before any date is parsed, so a request missing several
// parameters reports the first one in that order.
func (s *Service) ParseRequest(q url.Values) (Request, error) {
	rawURL := strings.TrimSpace(q.Get(ParamURL))
	startParam := strings.TrimSpace(q.Get(ParamStartDate))
	endParam := strings.TrimSpace(q.Get(ParamEndDate))

	switch {
	case rawURL == "":
		return Request{}, apperror.NewMissingParameter(ics.ErrEmptyURL.Error())
	case startParam == "":
		return Request{}, apperror.NewMissingParameter("Start date is required")
	case endParam == "":
		return Request{}, apperror.NewMissingParameter("End date is required")
	}

	start, err := model.ParseDate(startParam, s.opts.Location)
	if err != nil {
		return Request{}, apperror.NewInvalidDate("Invalid start date format")
	}
	end, err := model.ParseDate(endParam, s.opts.Location)
	if err != nil {
		return Request{}, apperror.NewInvalidDate("Invalid end date format")
	}

	return Request{
		URL:    rawURL,
		Window: model.NewWindow(start, end, s.opts.Location),
	}, nil
}

// CurrentWeek builds a request for the Monday..Sunday week containing now.
func (s *Service) CurrentWeek(rawURL string, now time.Time) Request {
	return Request{
		URL:    rawURL,
		Window: model.CurrentWeek(now, s.opts.Location),
	}
}

// Events fetches and normalizes the calendar and returns the events that
// start strictly inside the request window, ascending by start.
func (s *Service) Events(ctx context.Context, req Request) ([]model.Event, error) {
	raw, err := s.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, wrapFetchError(err)
	}

	cal, err := ics.Parse(raw)
	if err != nil {
		return nil, apperror.NewFetch(fmt.Errorf("Failed to parse calendar data: %w", err))
	}
	if n := len(cal.Warnings); n > 0 {
		s.tzWarnings.Add(ctx, int64(n))
	}

	var events []model.Event
	if s.opts.ExpandRecurring {
		events = ics.Expand(cal.Events, ics.ExpandConfig{
			Window:                 req.Window,
			MaxOccurrencesPerEvent: s.opts.MaxOccurrences,
		})
	} else {
		events = cal.Base()
	}

	filtered := ics.FilterWindow(events, req.Window)
	s.eventsFetched.Add(ctx, int64(len(filtered)))

	appLog.Debug("pipeline events ready",
		"parsed", len(cal.Events),
		"in_window", len(filtered),
		"window_start", req.Window.Start.Format(time.RFC3339),
		"window_end", req.Window.End.Format(time.RFC3339),
	)
	return filtered, nil
}

// Week lays events out over the request window.
func (s *Service) Week(events []model.Event, req Request) weekly.Week {
	w := weekly.Build(events, req.Window.Start, req.Window.End, s.opts.Styles)
	w.Title = s.opts.Title
	return w
}

// Theme resolves a theme name. Unknown or empty names fall back to the
// configured default.
func (s *Service) Theme(name string) render.Theme {
	if name != "" {
		if t, ok := render.ThemeByName(name); ok {
			return t
		}
		appLog.Warn("unknown theme; using default",
			"theme", name,
			"default", s.opts.DefaultTheme,
			"available", strings.Join(render.ThemeNames(), ","),
		)
	}
	if t, ok := render.ThemeByName(s.opts.DefaultTheme); ok {
		return t
	}
	t, _ := render.ThemeByName(render.DefaultTheme)
	return t
}

// SVG fetches the calendar and renders the weekly schedule.
func (s *Service) SVG(ctx context.Context, req Request, theme string) ([]byte, error) {
	events, err := s.Events(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.RenderSVG(events, req, theme)
}

// RenderSVG renders already filtered events.
func (s *Service) RenderSVG(events []model.Event, req Request, theme string) ([]byte, error) {
	var buf bytes.Buffer
	if err := render.WriteSVG(&buf, s.Week(events, req), s.Theme(theme), s.opts.Assets); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return buf.Bytes(), nil
}

// Text formats events as Discord text. An empty pattern selects
// discord.DefaultPattern. grouped partitions by location instead.
func (s *Service) Text(events []model.Event, pattern string, grouped bool) string {
	if grouped {
		return discord.FormatGrouped(discord.Group(events, s.opts.PrimaryLocation))
	}
	if pattern == "" {
		pattern = discord.DefaultPattern
	}
	return discord.Format(events, pattern)
}

func wrapFetchError(err error) error {
	if errors.Is(err, ics.ErrEmptyURL) {
		return apperror.NewMissingParameter(err.Error())
	}
	var fe *ics.FetchError
	if errors.As(err, &fe) {
		return apperror.NewFetch(fe)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewFetch(&ics.FetchError{Err: err})
	}
	return apperror.NewInternal(err)
}

// Sample returns a fixed demo week and its events, used to preview themes
// without a calendar feed.
func Sample() (Request, []model.Event) {
	monday := time.Date(2023, 10, 2, 0, 0, 0, 0, time.UTC)
	req := Request{Window: model.NewWindow(monday, monday.AddDate(0, 0, 6), time.UTC)}
	events := []model.Event{
		{Start: monday.Add(10 * time.Hour), End: monday.Add(11 * time.Hour), Summary: "Meeting", Location: "discord"},
		{Start: monday.Add(2*24*time.Hour + 12*time.Hour), End: monday.Add(2*24*time.Hour + 13*time.Hour), Summary: "Lunch"},
		{Start: monday.Add(4*24*time.Hour + 17*time.Hour), End: monday.Add(4*24*time.Hour + 18*time.Hour), Summary: "Gym", Location: "twitch"},
	}
	return req, events
}
