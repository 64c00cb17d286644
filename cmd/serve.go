package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/leadflow/internal/automation"
	"github.com/teemow/leadflow/internal/config"
	"github.com/teemow/leadflow/internal/instrumentation"
	"github.com/teemow/leadflow/internal/scheduler"
	"github.com/teemow/leadflow/internal/server"
)

// serveOptions holds the serve flags. Empty values fall back to the config.
type serveOptions struct {
	Addr           string
	Schedule       string
	MetricsEnabled bool
	MetricsAddr    string
	RunTimeout     time.Duration
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run on a schedule",
		Long: `Start an HTTP server that runs the automation on POST /run. GET / answers
with a liveness banner and /healthz, /readyz and /healthz/detailed report
health and the outcome of the last run.

With a schedule (--schedule, schedule in the config file or LEADFLOW_SCHEDULE)
the automation also runs on that standard five-field cron expression in the
configured time zone, e.g. "0 9 * * *" for every day at 09:00.

Prometheus metrics are served on a dedicated port (--metrics-addr).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				opts.MetricsEnabled = false
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "HTTP trigger address (default: server.host:server.port from config, port 5000 or PORT)")
	cmd.Flags().StringVar(&opts.Schedule, "schedule", "", "Cron schedule for automatic runs (default: schedule from config)")
	cmd.Flags().BoolVar(&opts.MetricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Metrics server address (default: server.metrics_addr from config, :9090)")
	cmd.Flags().DurationVar(&opts.RunTimeout, "run-timeout", server.DefaultRunTimeout, "Maximum duration of a single run")

	return cmd
}

// resolve fills unset options from cfg.
func (o serveOptions) resolve(cfg *config.Config) serveOptions {
	if o.Addr == "" {
		o.Addr = cfg.Server.Addr()
	}
	if o.Schedule == "" {
		o.Schedule = cfg.Schedule
	}
	if o.MetricsAddr == "" {
		o.MetricsAddr = cfg.Server.MetricsAddr
	}
	return o
}

func runServe(parent context.Context, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := loadSettings(os.Stderr)
	if err != nil {
		return err
	}
	opts = opts.resolve(cfg)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := newProvider(shutdownCtx)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			logger.Warn("error during instrumentation shutdown", "error", err.Error())
		}
	}()

	runner, err := buildRunner(shutdownCtx, cfg, logger, runnerOptions{metrics: provider.Metrics()})
	if err != nil {
		return err
	}

	var metricsServer *server.MetricsServer
	if opts.MetricsEnabled && provider.Enabled() && provider.PrometheusEnabled() {
		metricsServer, err = startMetricsServer(opts.MetricsAddr, provider, logger)
		if err != nil {
			return err
		}
	}

	health := server.NewHealthChecker()
	srv, err := server.New(server.Config{
		Addr:       opts.Addr,
		Runner:     runner,
		Health:     health,
		Metrics:    provider.Metrics(),
		Logger:     logger,
		RunTimeout: opts.RunTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create trigger server: %w", err)
	}

	var sched *scheduler.Scheduler
	if opts.Schedule != "" {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		sched, err = scheduler.New(opts.Schedule, loc, scheduledRun(runner, health, opts.RunTimeout), logger)
		if err != nil {
			return err
		}
		sched.Start(shutdownCtx)
		logger.Info("scheduled runs enabled", "schedule", opts.Schedule, "timezone", loc.String(), "next_run", sched.Next())
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()
	health.SetReady(true)

	var serveErr error
	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("trigger server stopped with error: %w", err)
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), opts.RunTimeout+server.DefaultShutdownTimeout)
	defer stopCancel()

	if sched != nil && !sched.Stop(opts.RunTimeout) {
		logger.Warn("scheduled run still in progress at shutdown")
	}
	if err := srv.Shutdown(stopCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("error shutting down trigger server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			logger.Warn("error shutting down metrics server", "error", err.Error())
		}
	}

	if serveErr == nil {
		logger.Info("server gracefully stopped")
	}
	return serveErr
}

// startMetricsServer starts the metrics server in the background and waits
// briefly for it to fail on bind errors.
func startMetricsServer(addr string, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case err, ok := <-metricsErr:
		if ok {
			return nil, fmt.Errorf("metrics server failed to start: %w", err)
		}
	case <-time.After(200 * time.Millisecond):
	}
	return metricsServer, nil
}

// scheduledRun adapts the runner to the scheduler and records every
// outcome for the detailed health endpoint. A run skipped because another
// one is in progress is not an outcome.
func scheduledRun(runner server.Runner, health *server.HealthChecker, timeout time.Duration) scheduler.RunFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := runner.Run(ctx, automation.TriggerSchedule)
		if errors.Is(err, automation.ErrRunInProgress) {
			return err
		}
		health.RecordRun(res, err)
		return err
	}
}
