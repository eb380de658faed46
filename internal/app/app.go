// Package app wires the monitor together and manages its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/api"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/events"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/imports"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/metrics"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/scheduler"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/status"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/terms"
)

// DefaultShutdownTimeout bounds the HTTP drain on shutdown.
const DefaultShutdownTimeout = 30 * time.Second

// App holds the monitor's components.
type App struct {
	config  *config.Config
	logger  logger.Logger
	metrics *metrics.Metrics

	scheduler *scheduler.Scheduler
	tracker   *imports.Tracker
	chart     *events.Aggregator
	terms     *terms.Monitor
	canvas    *status.Monitor

	httpServer *http.Server
	version    string
}

// Options contains configuration for creating a new App.
type Options struct {
	ConfigPath string
	Version    string
	// Debug forces debug mode regardless of config.
	Debug bool
}

// New creates an App with all dependencies initialized.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Debug {
		cfg.Debug = true
	}

	appLogger, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "sis-monitor"),
		logger.String("version", opts.Version),
	)

	m := metrics.New()
	client := sis.NewClient(cfg.API.BaseURL, cfg.API.Timeout, appLogger, sis.WithRecorder(m))
	sched := scheduler.New(appLogger)

	tracker := imports.NewTracker(client, sched,
		cfg.Monitor.ImportInterval, cfg.Monitor.ProgressInterval, appLogger,
		imports.WithRecorder(m),
		imports.WithJobGauge(m.TrackedJobs),
	)
	chart := events.New(client, cfg.Monitor.EventTypes, cfg.Monitor.BackfillWindow, appLogger)
	termMonitor := terms.NewMonitor(client, appLogger)
	canvasMonitor := status.NewMonitor(client, appLogger)

	router := api.NewRouter(tracker, chart, termMonitor, canvasMonitor, m, appLogger, cfg.Debug)

	return &App{
		config:    cfg,
		logger:    appLogger,
		metrics:   m,
		scheduler: sched,
		tracker:   tracker,
		chart:     chart,
		terms:     termMonitor,
		canvas:    canvasMonitor,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      router.Engine(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		version: opts.Version,
	}, nil
}

// Run starts every monitor and the HTTP server, then blocks until a
// shutdown signal or a server error.
func (a *App) Run(ctx context.Context) error {
	pollCtx, pollCancel := context.WithCancel(ctx)
	defer pollCancel()

	// Backfill failure is not fatal: the chart starts empty and live
	// ticks fill it from the current minute forward.
	if err := a.chart.Backfill(pollCtx); err != nil {
		a.logger.Warn("event backfill failed, starting with empty chart", logger.Error(err))
	}
	a.metrics.EventTotal.Set(float64(a.chart.Snapshot().Total))

	a.tracker.StartAll(pollCtx)
	a.startMonitor(pollCtx, "events", cronEventsKey, a.config.Monitor.EventInterval, func(ctx context.Context) error {
		err := a.chart.Tick(ctx)
		a.metrics.EventTotal.Set(float64(a.chart.Snapshot().Total))
		return err
	})
	a.startMonitor(pollCtx, "terms", cronTermsKey, a.config.Monitor.TermInterval, a.terms.Refresh)
	a.startMonitor(pollCtx, "status", cronStatusKey, a.config.Monitor.StatusInterval, a.canvas.Refresh)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening",
			logger.String("address", a.config.Server.Address))
		serverErr <- a.httpServer.ListenAndServe()
	}()

	return a.waitForShutdown(pollCancel, serverErr)
}

const (
	cronEventsKey = "events-tick"
	cronTermsKey  = "terms-refresh"
	cronStatusKey = "status-refresh"
)

// startMonitor runs one refresh immediately and then repeats it on
// interval, recording every tick.
func (a *App) startMonitor(ctx context.Context, name, key string, interval time.Duration, refresh func(context.Context) error) {
	action := func() {
		err := refresh(ctx)
		a.metrics.Tick(name, err)
		if err != nil {
			a.logger.Error("poll tick failed",
				logger.String("monitor", name),
				logger.Error(err))
		}
	}
	a.scheduler.RunOnce(key, action)
	a.scheduler.Start(key, interval, action)
}

func (a *App) waitForShutdown(pollCancel context.CancelFunc, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownErr error

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server error", logger.Error(err))
			shutdownErr = err
		}
	}

	pollCancel()
	a.tracker.StopAll()
	a.scheduler.Shutdown()
	a.shutdownHTTPServer()

	a.logger.Info("Service stopped")
	return shutdownErr
}

func (a *App) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Close flushes the logger.
func (a *App) Close() error {
	return a.logger.Sync()
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger {
	return a.logger
}
