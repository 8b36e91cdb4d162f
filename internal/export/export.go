// Package export renders the current week to files on a cron schedule.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"weekcal/internal/config"
	appLog "weekcal/internal/log"
	"weekcal/internal/pipeline"
)

// Output file names inside the export directory.
const (
	SVGFile  = "schedule.svg"
	PNGFile  = "schedule.png"
	TextFile = "schedule.txt"
)

const defaultRunTimeout = 2 * time.Minute

// Rasterizer converts an SVG document into PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg []byte) ([]byte, error)
}

// Options configures a Job.
type Options struct {
	URL       string
	OutputDir string
	Theme     string
	Format    string
	Grouped   bool

	// Timeout bounds one run. Zero selects two minutes.
	Timeout time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Job renders one week of a calendar into OutputDir.
type Job struct {
	svc    *pipeline.Service
	raster Rasterizer
	opts   Options
}

// Result lists the files written by a run.
type Result struct {
	Window string
	Events int
	Files  []string
}

func NewJob(svc *pipeline.Service, raster Rasterizer, opts Options) *Job {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRunTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Job{svc: svc, raster: raster, opts: opts}
}

// Run fetches the calendar once and writes the SVG, text and (when a
// rasterizer is configured) PNG outputs. The SVG and text files are kept
// even if rasterization fails; the error is still returned.
func (j *Job) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, j.opts.Timeout)
	defer cancel()

	req := j.svc.CurrentWeek(j.opts.URL, j.opts.Now())
	res := Result{
		Window: req.Window.Start.Format(time.DateOnly) + ".." + req.Window.End.Format(time.DateOnly),
	}

	events, err := j.svc.Events(ctx, req)
	if err != nil {
		return res, fmt.Errorf("export: load events: %w", err)
	}
	res.Events = len(events)

	svg, err := j.svc.RenderSVG(events, req, j.opts.Theme)
	if err != nil {
		return res, fmt.Errorf("export: render svg: %w", err)
	}
	if err := j.write(&res, SVGFile, svg); err != nil {
		return res, err
	}

	text := j.svc.Text(events, j.opts.Format, j.opts.Grouped)
	if err := j.write(&res, TextFile, []byte(text+"\n")); err != nil {
		return res, err
	}

	if j.raster == nil {
		return res, nil
	}
	png, err := j.raster.Rasterize(ctx, svg)
	if err != nil {
		return res, fmt.Errorf("export: rasterize: %w", err)
	}
	if err := j.write(&res, PNGFile, png); err != nil {
		return res, err
	}
	return res, nil
}

func (j *Job) write(res *Result, name string, data []byte) error {
	path := filepath.Join(j.opts.OutputDir, name)
	if err := config.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", name, err)
	}
	res.Files = append(res.Files, path)
	return nil
}

// Scheduler runs a Job on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	spec string

	// ctx is set by Start and cancels in-flight runs on shutdown.
	ctx context.Context
}

// NewScheduler validates spec (standard five-field cron or a descriptor such
// as "@hourly") and registers job. Overlapping runs are skipped.
func NewScheduler(spec string, job *Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("export: job is nil")
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s := &Scheduler{cron: c, job: job, spec: spec, ctx: context.Background()}
	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("export: invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the scheduler until ctx is done, then waits for a running
// export to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	appLog.Info("export scheduler started", "refresh", s.spec)
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("export scheduler stopped")
	}()
}

// Next reports the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) runOnce() {
	res, err := s.job.Run(s.ctx)
	if err != nil {
		appLog.Error("export run failed", err, "window", res.Window)
		return
	}
	appLog.Info("export run completed", "window", res.Window, "events", res.Events, "files", res.Files)
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
