package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	appLog "weekcal/internal/log"
)

// Default rasterization parameters.
const (
	DefaultWidth      = 800
	DefaultTimeoutSec = 30
)

// ErrNotSVG is returned for input whose root element is not <svg>.
var ErrNotSVG = errors.New("input is not an SVG document")

// Options configures a Chromium rasterizer.
type Options struct {
	// Width is the output width in pixels; height follows the SVG aspect
	// ratio. If zero, DefaultWidth is used.
	Width int

	// Timeout bounds a single conversion. If zero, DefaultTimeoutSec is used.
	Timeout time.Duration

	// RemoteURL, if set, is the DevTools websocket URL of an already running
	// browser. Otherwise a headless Chromium is launched per conversion.
	RemoteURL string
}

// Chromium rasterizes SVG documents by loading them into headless Chromium
// and capturing the rendered element as PNG.
type Chromium struct {
	opts Options
}

func NewChromium(opts Options) *Chromium {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return &Chromium{opts: opts}
}

// Rasterize converts svg into PNG bytes.
//
// The document is embedded as a data URI image in a blank page. The element
// is captured once the browser reports it as loaded; an image with no
// intrinsic width means Chromium could not decode the SVG.
func (c *Chromium) Rasterize(parentCtx context.Context, svg []byte) ([]byte, error) {
	if err := Validate(svg); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := c.allocator(parentCtx)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer timeoutCancel()

	html := pageHTML(svg, c.opts.Width)

	var (
		png      []byte
		loaded   bool
		natWidth int
	)
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(c.opts.Width), 100),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.Poll(`document.getElementById("svg") !== null && document.getElementById("svg").complete`, &loaded),
		chromedp.Evaluate(`document.getElementById("svg").naturalWidth`, &natWidth),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("raster: chromedp run failed: %w", err)
	}
	if natWidth == 0 {
		return nil, errors.New("raster: browser could not decode the SVG")
	}

	if err := chromedp.Run(ctx, chromedp.Screenshot("#svg", &png, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("raster: screenshot failed: %w", err)
	}

	appLog.Debug("raster: svg converted", "svg_bytes", len(svg), "png_bytes", len(png), "width", c.opts.Width)
	return png, nil
}

func (c *Chromium) allocator(parent context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(parent, c.opts.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("default-background-color", "00000000"),
	)
	return chromedp.NewExecAllocator(parent, opts...)
}

func pageHTML(svg []byte, width int) string {
	src := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(svg)
	return fmt.Sprintf(`<!DOCTYPE html><html><head><style>html,body{margin:0;padding:0;background:transparent}img{display:block}</style></head>`+
		`<body><img id="svg" width="%d" src="%s"></body></html>`, width, src)
}

// Validate checks that svg is well-formed XML with an <svg> root element.
func Validate(svg []byte) error {
	if len(bytes.TrimSpace(svg)) == 0 {
		return ErrNotSVG
	}
	dec := xml.NewDecoder(bytes.NewReader(svg))
	dec.Strict = true
	root := ""
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotSVG, err)
		}
		if se, ok := tok.(xml.StartElement); ok && root == "" {
			root = se.Name.Local
		}
	}
	if root != "svg" {
		return ErrNotSVG
	}
	return nil
}
