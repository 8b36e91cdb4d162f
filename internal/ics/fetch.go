package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "weekcal/internal/log"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultMaxBytes     = 10 << 20
	defaultUserAgent    = "weekcal/1.0"
)

// ErrEmptyURL is returned when Fetch is called without a URL.
var ErrEmptyURL = errors.New("URL is required")

// FetchError describes an upstream failure. StatusCode is zero when the
// request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return "Failed to fetch calendar data: " + e.Status
	}
	if e.Err != nil {
		return "Failed to fetch calendar data: " + e.Err.Error()
	}
	return "Failed to fetch calendar data"
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchOptions tunes the HTTP client used by a Fetcher. Zero values pick the
// defaults.
type FetchOptions struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Fetcher retrieves raw iCalendar payloads. It holds no state besides its
// HTTP client, so one instance may serve concurrent requests.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

func NewFetcher(opts FetchOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

// NewFetcherWithClient wraps a caller-supplied client, e.g. one with a
// custom transport or proxy. Size and User-Agent use the defaults.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	f := NewFetcher(FetchOptions{})
	if client != nil {
		f.client = client
	}
	return f
}

// Fetch performs one GET against rawURL and returns the body. webcal:// is
// treated as https://. Failures are not retried.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrEmptyURL
	}

	target, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")
	req.Header.Set("User-Agent", f.userAgent)

	appLog.Debug("ics fetch start", "url", redactURL(target))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:        target,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	if int64(len(body)) > f.maxBytes {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("calendar exceeds %d bytes", f.maxBytes)}
	}

	appLog.Info("ics fetch success", "url", redactURL(target), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// NormalizeURL rewrites webcal:// to https:// and rejects any scheme other
// than http, https or webcal.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "webcal":
		u.Scheme = "https"
	case "http", "https":
		u.Scheme = strings.ToLower(u.Scheme)
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("URL has no host")
	}
	return u.String(), nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Calendar links usually embed a private token in the path or query.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
