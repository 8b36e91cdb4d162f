package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.opentelemetry.io/otel"

	"weekcal/internal/config"
	"weekcal/internal/export"
	"weekcal/internal/httpx"
	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/pipeline"
	"weekcal/internal/raster"
	"weekcal/internal/render"
	"weekcal/internal/web"
)

const version = "1.0.0"

// flagConfig holds CLI flag values; they override the config file.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Setup(conf.LogFormat, appLog.ParseLevel(conf.LogLevel))
	appLog.Info("weekcal starting", "version", version)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"expand_recurring", *conf.ExpandRecurring,
		"theme", conf.Schedule.Theme,
		"export_enabled", conf.Export.Enabled,
		"export_refresh", conf.Export.Refresh,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	meterProvider, err := httpx.NewMeterProvider(nil)
	if err != nil {
		appLog.Error("failed to initialize OpenTelemetry", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpx.Shutdown(shutdownCtx, meterProvider); err != nil {
			appLog.Error("failed to shutdown OpenTelemetry", err)
		}
	}()
	otel.SetMeterProvider(meterProvider)

	svc, err := newService(conf)
	if err != nil {
		appLog.Error("failed to build pipeline", err)
		os.Exit(1)
	}
	rasterizer := raster.NewChromium(raster.Options{
		Width:     conf.Raster.Width,
		Timeout:   conf.Raster.Timeout,
		RemoteURL: conf.Raster.RemoteURL,
	})

	if flags.once {
		if err := runExportOnce(ctx, conf, svc, rasterizer); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, svc, rasterizer); err != nil {
		appLog.Error("server error", err)
		os.Exit(1)
	}
	appLog.Info("weekcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./weekcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Export the current week once and exit")

	flag.Parse()

	return cfg
}

func newService(conf *config.Config) (*pipeline.Service, error) {
	fetcher := ics.NewFetcher(ics.FetchOptions{
		Timeout:   conf.Fetch.Timeout,
		MaxBytes:  conf.Fetch.MaxBytes,
		UserAgent: conf.Fetch.UserAgent,
	})
	styles := conf.Styles()
	return pipeline.New(fetcher, pipeline.Options{
		Location:        conf.Location(),
		ExpandRecurring: *conf.ExpandRecurring,
		MaxOccurrences:  conf.MaxOccurrences,
		Title:           conf.Schedule.Title,
		Styles:          styles,
		Assets:          render.LoadAssets(conf.Schedule.BackgroundImage, styles),
		DefaultTheme:    conf.Schedule.Theme,
		PrimaryLocation: conf.Schedule.PrimaryLocation,
	})
}

func newExportJob(conf *config.Config, svc *pipeline.Service, r export.Rasterizer) *export.Job {
	return export.NewJob(svc, r, export.Options{
		URL:       conf.Export.URL,
		OutputDir: conf.Export.OutputDir,
		Theme:     conf.Export.Theme,
		Format:    conf.Export.Format,
		Grouped:   conf.Export.Grouped,
	})
}

func runExportOnce(ctx context.Context, conf *config.Config, svc *pipeline.Service, r export.Rasterizer) error {
	if conf.Export.URL == "" {
		err := errors.New("export.url is not set")
		appLog.Error("cannot run export", err)
		return err
	}
	res, err := newExportJob(conf, svc, r).Run(ctx)
	if err != nil {
		appLog.Error("export failed", err, "window", res.Window)
		return err
	}
	appLog.Info("export completed", "window", res.Window, "events", res.Events, "files", res.Files)
	return nil
}

func serve(ctx context.Context, conf *config.Config, svc *pipeline.Service, r web.Rasterizer) error {
	telemetry, err := httpx.NewTelemetry()
	if err != nil {
		return err
	}

	if conf.Export.Enabled {
		sched, err := export.NewScheduler(conf.Export.Refresh, newExportJob(conf, svc, r))
		if err != nil {
			return err
		}
		sched.Start(ctx)
		appLog.Info("next export scheduled", "at", sched.Next())
	}

	server := web.NewServer(svc, r, web.Options{
		Telemetry: telemetry,
		Metrics:   web.DefaultMetricsHandler(),
	})

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Rasterizing may launch a browser.
		WriteTimeout: conf.Raster.Timeout + conf.Fetch.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("shutting down gracefully")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
