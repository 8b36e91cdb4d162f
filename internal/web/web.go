package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weekcal/internal/apperror"
	"weekcal/internal/httpx"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/pipeline"
)

// Query parameters beyond url/startDate/endDate.
const (
	paramTheme  = "theme"
	paramFormat = "format"
	paramGroup  = "group"

	groupByLocation = "location"
)

const defaultMaxSVGBytes = 5 << 20

// Rasterizer converts an SVG document into PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	// Telemetry instruments every route when set.
	Telemetry *httpx.Telemetry
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// MaxSVGBytes bounds POST /svg-to-png bodies.
	MaxSVGBytes int64
}

// Server exposes the calendar pipeline over HTTP. It keeps no per-request
// state: every call fetches the calendar again.
type Server struct {
	svc    *pipeline.Service
	raster Rasterizer
	opts   Options
	router *mux.Router
}

// NewServer constructs a new Server.
func NewServer(svc *pipeline.Service, raster Rasterizer, opts Options) *Server {
	if opts.MaxSVGBytes <= 0 {
		opts.MaxSVGBytes = defaultMaxSVGBytes
	}
	s := &Server{
		svc:    svc,
		raster: raster,
		opts:   opts,
		router: mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// DefaultMetricsHandler is the Prometheus handler for the default registry,
// which the OpenTelemetry exporter registers into.
func DefaultMetricsHandler() http.Handler {
	return promhttp.Handler()
}

func (s *Server) registerRoutes() {
	if s.opts.Telemetry != nil {
		s.router.Use(s.opts.Telemetry.Middleware)
	}
	s.router.Use(httpx.Logger(), httpx.Recovery())

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/schedule-svg", s.handleScheduleSVG).Methods(http.MethodGet)
	s.router.HandleFunc("/schedule-png", s.handleSchedulePNG).Methods(http.MethodGet)
	s.router.HandleFunc("/schedule-text", s.handleScheduleText).Methods(http.MethodGet)
	s.router.HandleFunc("/schedule-sample", s.handleScheduleSample).Methods(http.MethodGet)
	s.router.HandleFunc("/svg-to-png", s.handleSVGToPNG).Methods(http.MethodPost)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /events.
type eventsResponse struct {
	Events []model.Event `json:"events"`
}

// textResponse is the JSON response shape for /schedule-text.
type textResponse struct {
	Result string `json:"result"`
}

// handleEvents returns the normalized events inside the requested window.
//
// GET /events?url=...&startDate=2025-01-13&endDate=2025-01-19
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	req, events, ok := s.loadEvents(w, r)
	if !ok {
		return
	}
	appLog.Info("events request served",
		"count", len(events),
		"window_start", req.Window.Start,
		"window_end", req.Window.End,
	)
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// handleScheduleSVG renders the weekly schedule.
//
// GET /schedule-svg?url=...&startDate=...&endDate=...[&theme=dark]
func (s *Server) handleScheduleSVG(w http.ResponseWriter, r *http.Request) {
	req, events, ok := s.loadEvents(w, r)
	if !ok {
		return
	}
	svg, err := s.svc.RenderSVG(events, req, r.URL.Query().Get(paramTheme))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

// handleSchedulePNG is /schedule-svg followed by /svg-to-png in one call.
func (s *Server) handleSchedulePNG(w http.ResponseWriter, r *http.Request) {
	req, events, ok := s.loadEvents(w, r)
	if !ok {
		return
	}
	svg, err := s.svc.RenderSVG(events, req, r.URL.Query().Get(paramTheme))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writePNG(w, r, svg)
}

// handleScheduleText formats the events as Discord text.
//
// GET /schedule-text?url=...&startDate=...&endDate=...[&format=...][&group=location]
func (s *Server) handleScheduleText(w http.ResponseWriter, r *http.Request) {
	_, events, ok := s.loadEvents(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	grouped := strings.EqualFold(q.Get(paramGroup), groupByLocation)
	writeJSON(w, http.StatusOK, textResponse{Result: s.svc.Text(events, q.Get(paramFormat), grouped)})
}

// handleScheduleSample renders a fixed demo week without fetching anything.
func (s *Server) handleScheduleSample(w http.ResponseWriter, r *http.Request) {
	req, events := pipeline.Sample()
	svg, err := s.svc.RenderSVG(events, req, r.URL.Query().Get(paramTheme))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

// handleSVGToPNG rasterizes a posted SVG document.
//
// POST /svg-to-png (Content-Type: image/svg+xml)
func (s *Server) handleSVGToPNG(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxSVGBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeAppError(w, apperror.NewConversion(fmt.Errorf("SVG exceeds %d bytes", tooLarge.Limit)))
			return
		}
		s.writeAppError(w, apperror.NewConversion(err))
		return
	}
	s.writePNG(w, r, body)
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, svg []byte) {
	if s.raster == nil {
		s.writeAppError(w, apperror.NewConversion(errors.New("rasterizer unavailable")))
		return
	}
	png, err := s.raster.Rasterize(r.Context(), svg)
	if err != nil {
		s.writeAppError(w, apperror.NewConversion(err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// loadEvents validates the query and runs the pipeline. On failure it has
// already written the response and ok is false.
func (s *Server) loadEvents(w http.ResponseWriter, r *http.Request) (pipeline.Request, []model.Event, bool) {
	req, err := s.svc.ParseRequest(r.URL.Query())
	if err != nil {
		s.writeAppError(w, err)
		return pipeline.Request{}, nil, false
	}
	events, err := s.svc.Events(r.Context(), req)
	if err != nil {
		s.writeAppError(w, err)
		return req, nil, false
	}
	if events == nil {
		events = []model.Event{}
	}
	return req, events, true
}

// writeAppError maps an error onto the response. Conversion failures are
// JSON, everything else is a plain-text message.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	code := apperror.SafeCode(err)
	msg := apperror.SafeMessage(err)

	if code >= http.StatusInternalServerError {
		appLog.Error("request failed", err, "status", code)
	} else {
		appLog.Warn("request rejected", "status", code, "err", msg)
	}

	if apperror.IsType(err, apperror.TypeConversion) {
		writeError(w, code, msg)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
