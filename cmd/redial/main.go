package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/redial/httpcall"
	"github.com/vietddude/redial/internal/config"
	"github.com/vietddude/redial/internal/diag"
	"github.com/vietddude/redial/report"
	"github.com/vietddude/redial/retry"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	interval := flag.Duration("interval", 0, "Probe interval (0 = single call)")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load Configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Fall back to default logger for config load errors
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Simplifed logging logic (debug < info)
	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	// Initialize stylelog with tint.Options for level control
	stylelog.InitDefault(
		&tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	slog.Info("Logger initialized", "level", slogLevel.String())

	// Setup Context with Cancellation on OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Build the reporting sinks once, outside the call path
	reporter, source, closeSinks, err := buildReporter(ctx, cfg.Reporting)
	if err != nil {
		slog.Error("Failed to initialize reporting sinks", "error", err)
		os.Exit(1)
	}
	defer closeSinks()

	interceptor := retry.New(retry.Policy{
		MaxDelay:              time.Duration(cfg.Retry.MaxDelaySeconds) * time.Second,
		MaxAttempts:           cfg.Retry.MaxAttempts,
		DisableTransportRetry: cfg.Retry.DisableTransportRetry,
		DisableServerRetry:    cfg.Retry.DisableServerRetry,
		Reporter:              reporter,
	})

	// Diagnostics server (health, metrics, recent failures)
	diagServer := diag.NewServer(cfg.Diag.Port, source)
	go func() {
		slog.Info("Diagnostics server listening", "port", cfg.Diag.Port)
		if err := diagServer.Start(); err != nil && ctx.Err() == nil {
			slog.Error("Diagnostics server failed", "error", err)
		}
	}()

	client := httpcall.New(cfg.Target.Endpoint, time.Duration(cfg.Target.TimeoutSeconds)*time.Second)
	attempt := interceptor.Wrap(client.Attempt(cfg.Target.Method))

	runProbe(ctx, attempt, cfg.Target.Method, *interval)

	// Graceful Shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := diagServer.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Probe stopped gracefully")
}

// runProbe performs the decorated call once, or on every tick when an
// interval is set, until the context is cancelled.
func runProbe(ctx context.Context, attempt retry.Attempt, method string, interval time.Duration) {
	probe := func() {
		res, err := attempt(ctx, method, nil)
		switch {
		case err != nil:
			slog.Error("Call failed", "method", method, "error", err)
		case !res.OK:
			slog.Warn("Call returned terminal error", "method", method, "code", res.Code)
		default:
			slog.Info("Call succeeded", "method", method)
		}
	}

	probe()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}

// buildReporter assembles the configured sinks into one fan-out reporter.
// It also picks a queryable sink for the /failures endpoint, preferring
// postgres over redis.
func buildReporter(ctx context.Context, cfg config.ReportingConfig) (report.Reporter, diag.RecentSource, func(), error) {
	var (
		sinks   report.Multi
		source  diag.RecentSource
		closers []func() error
	)

	if cfg.Log {
		sinks = append(sinks, report.NewLog(slog.Default()))
	}
	if cfg.HTTP != nil {
		sinks = append(sinks, report.NewHTTP(report.HTTPConfig{
			URL:     cfg.HTTP.URL,
			Token:   cfg.HTTP.Token,
			Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		}))
	}
	if cfg.Redis != nil {
		r, err := report.NewRedis(*cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, r)
		source = r
		closers = append(closers, r.Close)
	}
	if cfg.Postgres != nil {
		p, err := report.NewPostgres(ctx, *cfg.Postgres)
		if err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, p)
		source = p
		closers = append(closers, p.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Failed to close reporting sink", "error", err)
			}
		}
	}

	if len(sinks) == 0 {
		return report.Nop(), nil, closeAll, nil
	}
	return sinks, source, closeAll, nil
}
