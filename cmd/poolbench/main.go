// Command poolbench drives configurable load against a set of size-bounded
// buffer pools and reports their final accounting as JSON.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachpo/sizedpool/internal/config"
	"github.com/coachpo/sizedpool/lib/observability"
)

const (
	defaultConfigPath        = "config/poolbench.yaml"
	telemetryShutdownTimeout = 5 * time.Second
)

type cliOptions struct {
	configPath  string
	workers     int
	requests    int
	keys        int
	rate        float64
	metricsAddr string
}

func main() {
	opts := parseFlags(os.Args[1:])
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "poolbench: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) cliOptions {
	fs := flag.NewFlagSet("poolbench", flag.ExitOnError)
	var opts cliOptions
	fs.StringVar(&opts.configPath, "config", "", fmt.Sprintf("Path to configuration file (default: %s)", defaultConfigPath))
	fs.IntVar(&opts.workers, "workers", 0, "Concurrent workers (overrides bench.workers)")
	fs.IntVar(&opts.requests, "requests", 0, "Borrow/return cycles per worker (overrides bench.requests)")
	fs.IntVar(&opts.keys, "keys", 0, "Distinct buffer size classes (overrides bench.keys)")
	fs.Float64Var(&opts.rate, "rate", 0, "Global borrow rate per second, 0 for unlimited (overrides bench.rate)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	_ = fs.Parse(args)
	return opts
}

func (o cliOptions) apply(cfg *config.AppConfig) {
	if o.workers > 0 {
		cfg.Bench.Workers = o.workers
	}
	if o.requests > 0 {
		cfg.Bench.Requests = o.requests
	}
	if o.keys > 0 {
		cfg.Bench.Keys = o.keys
	}
	if o.rate > 0 {
		cfg.Bench.Rate = o.rate
	}
}

func run(ctx context.Context, opts cliOptions, out io.Writer) error {
	path := opts.configPath
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.LoadOrDefault(ctx, path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}

	zl, err := observability.NewZapProduction(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	logger := observability.NewZapLogger(zl)
	observability.SetLogger(logger)
	defer observability.SetLogger(nil)

	logger.Info("configuration initialised",
		observability.F("environment", string(cfg.Environment)),
		observability.F("pools", len(cfg.Pools)),
		observability.F("workers", cfg.Bench.Workers),
	)

	b, err := newBench(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := b.shutdownTelemetry(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", observability.F("error", err))
		}
	}()

	if opts.metricsAddr != "" {
		stop := b.serveMetrics(opts.metricsAddr)
		defer stop()
	}

	report := b.run(ctx)
	if err := writeReport(out, report); err != nil {
		return err
	}

	shutdownErr := b.manager.Shutdown(ctx)
	if shutdownErr != nil {
		logger.Error("pool manager shutdown", observability.F("error", shutdownErr))
	}
	logger.Info("poolbench finished",
		observability.F("succeeded", report.Succeeded),
		observability.F("failed", report.Failed),
		observability.F("elapsed", report.elapsed),
	)
	return shutdownErr
}
