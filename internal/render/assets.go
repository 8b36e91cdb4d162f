package render

import (
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	appLog "weekcal/internal/log"
	"weekcal/internal/weekly"
)

// Assets are images inlined into the SVG as data URIs so the document is
// self-contained for the rasterizer.
type Assets struct {
	// Background is a data URI or "".
	Background string
	// Icons maps a Style.Icon reference onto a usable href.
	Icons map[string]string
}

// Icon returns the href for ref, or "" when no image is available.
func (a Assets) Icon(ref string) string {
	if ref == "" || a.Icons == nil {
		return ""
	}
	return a.Icons[ref]
}

// LoadAssets reads the background image and every icon referenced by styles.
// Remote references are kept as links. Unreadable files are logged and left
// out; the schedule still renders without them.
func LoadAssets(backgroundPath string, styles weekly.Styles) Assets {
	a := Assets{Icons: map[string]string{}}

	if backgroundPath != "" {
		if uri, err := fileDataURI(backgroundPath); err != nil {
			appLog.Error("Error loading background image", err, "path", backgroundPath)
		} else {
			a.Background = uri
		}
	}

	refs := []string{styles.Default.Icon}
	for _, st := range styles.ByLocation {
		refs = append(refs, st.Icon)
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, done := a.Icons[ref]; done {
			continue
		}
		if isRemote(ref) {
			a.Icons[ref] = ref
			continue
		}
		uri, err := fileDataURI(ref)
		if err != nil {
			appLog.Error("Error loading icon", err, "path", ref)
			continue
		}
		a.Icons[ref] = uri
	}
	return a
}

func fileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DataURI(data, path), nil
}

// DataURI base64-encodes data with a MIME type derived from its content, or
// from the file name for SVG which content sniffing reports as text.
func DataURI(data []byte, name string) string {
	mime := http.DetectContentType(data)
	if strings.HasSuffix(strings.ToLower(name), ".svg") {
		mime = "image/svg+xml"
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func isRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "data:")
}
