package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/coachpo/sizedpool/internal/config"
	"github.com/coachpo/sizedpool/lib/observability"
	"github.com/coachpo/sizedpool/lib/pool"
	"github.com/coachpo/sizedpool/lib/telemetry"
)

const (
	baseBufferSize         = 512
	borrowTimeout          = 250 * time.Millisecond
	metricsShutdownTimeout = 2 * time.Second
	metricsReadTimeout     = 5 * time.Second
	tracerName             = "github.com/coachpo/sizedpool/cmd/poolbench"
)

// worker identifies the goroutine borrowing a buffer. It is the listener
// context value for every pool call.
type worker struct {
	id int
}

// bufferListener hands out buffers whose capacity grows with the key.
func bufferListener(logger observability.Logger, poolName string) pool.Listener[int, *bytes.Buffer, *worker] {
	return pool.ListenerFuncs[int, *bytes.Buffer, *worker]{
		EstimateSizeFunc: func(_ *worker, key int) (uint64, error) {
			return bufferSize(key), nil
		},
		CreateFunc: func(_ *worker, key int) (*bytes.Buffer, error) {
			return bytes.NewBuffer(make([]byte, 0, bufferSize(key))), nil
		},
		SizeFunc: func(_ *worker, _ int, b *bytes.Buffer) (uint64, error) {
			return uint64(b.Cap()), nil
		},
		ReuseFunc: func(_ *worker, _ int, b *bytes.Buffer) error {
			b.Reset()
			return nil
		},
		OnErrorFunc: func(w *worker, key int, _ **bytes.Buffer, cause error) error {
			logger.Error("buffer listener failure",
				observability.F("pool", poolName),
				observability.F("worker", w.id),
				observability.F("key", key),
				observability.F("error", cause),
			)
			return nil
		},
	}
}

func bufferSize(key int) uint64 {
	return uint64(baseBufferSize * (key + 1))
}

type bench struct {
	cfg       config.AppConfig
	logger    observability.Logger
	manager   *pool.Manager
	pools     []string
	metrics   map[string]*telemetry.PoolMetrics
	registry  *prometheus.Registry
	providers telemetry.Providers

	shutdownTelemetry func(context.Context) error
}

// Report summarises a bench run.
type Report struct {
	Environment string       `json:"environment"`
	Workers     int          `json:"workers"`
	Requests    int64        `json:"requests"`
	Succeeded   int64        `json:"succeeded"`
	Failed      int64        `json:"failed"`
	Elapsed     string       `json:"elapsed"`
	Pools       []pool.Stats `json:"pools"`

	elapsed time.Duration
}

func newBench(ctx context.Context, cfg config.AppConfig, logger observability.Logger) (*bench, error) {
	providers, shutdown, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint:  cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:  cfg.Telemetry.OTLPInsecure,
		ServiceName:   cfg.Telemetry.ServiceName,
		Environment:   string(cfg.Environment),
		EnableMetrics: cfg.Telemetry.EnableMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise telemetry: %w", err)
	}

	b := &bench{
		cfg:               cfg,
		logger:            logger,
		manager:           pool.NewManager(logger),
		pools:             cfg.PoolNames(),
		metrics:           make(map[string]*telemetry.PoolMetrics, len(cfg.Pools)),
		registry:          prometheus.NewRegistry(),
		providers:         providers,
		shutdownTelemetry: shutdown,
	}

	for _, name := range b.pools {
		limits := cfg.Pools[name]
		metrics, err := telemetry.NewPoolMetrics(providers.MeterProvider, string(cfg.Environment), name)
		if err != nil {
			return nil, fmt.Errorf("pool %s metrics: %w", name, err)
		}
		p, err := pool.New(bufferListener(logger, name), limits.SoftLimit, limits.HardLimit,
			pool.WithName(name),
			pool.WithLogger(logger),
			pool.WithObserver(metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("create pool %s: %w", name, err)
		}
		s := pool.NewSynchronized(p)
		if limits.WaitInitial > 0 || limits.WaitMax > 0 {
			s.WithWaitIntervals(limits.WaitInitial, limits.WaitMax)
		}
		if err := pool.Register(b.manager, s, &worker{id: -1}); err != nil {
			return nil, fmt.Errorf("register pool %s: %w", name, err)
		}
		b.metrics[name] = metrics
		logger.Info("pool registered",
			observability.F("pool", name),
			observability.F("soft_limit", limits.SoftLimit),
			observability.F("hard_limit", limits.HardLimit),
		)
	}

	if err := b.registry.Register(telemetry.NewPrometheusCollector("poolbench", b.manager)); err != nil {
		return nil, fmt.Errorf("register prometheus collector: %w", err)
	}
	return b, nil
}

func (b *bench) run(ctx context.Context) Report {
	ctx, span := b.providers.TracerProvider.Tracer(tracerName).Start(ctx, "poolbench.run")
	defer span.End()

	var limiter *rate.Limiter
	if b.cfg.Bench.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.cfg.Bench.Rate), b.cfg.Bench.Workers)
	}

	var succeeded, failed atomic.Int64
	start := time.Now()

	var wg conc.WaitGroup
	for id := 0; id < b.cfg.Bench.Workers; id++ {
		w := &worker{id: id}
		wg.Go(func() {
			for i := 0; i < b.cfg.Bench.Requests; i++ {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				} else if ctx.Err() != nil {
					return
				}
				if err := b.cycle(ctx, w, i); err != nil {
					failed.Add(1)
					continue
				}
				succeeded.Add(1)
			}
		})
	}
	wg.Wait()

	elapsed := time.Since(start)
	report := Report{
		Environment: string(b.cfg.Environment),
		Workers:     b.cfg.Bench.Workers,
		Requests:    succeeded.Load() + failed.Load(),
		Succeeded:   succeeded.Load(),
		Failed:      failed.Load(),
		Elapsed:     elapsed.String(),
		Pools:       b.manager.Stats(),
		elapsed:     elapsed,
	}
	span.SetAttributes(
		attribute.Int64("poolbench.succeeded", report.Succeeded),
		attribute.Int64("poolbench.failed", report.Failed),
	)
	return report
}

// cycle borrows one buffer, fills it, and hands it back.
func (b *bench) cycle(ctx context.Context, w *worker, i int) error {
	name := b.pools[(w.id+i)%len(b.pools)]
	key := rand.IntN(b.cfg.Bench.Keys)

	borrowCtx, cancel := context.WithTimeout(ctx, borrowTimeout)
	defer cancel()

	start := time.Now()
	buf, release, err := pool.Borrow[int, *bytes.Buffer, *worker](borrowCtx, b.manager, name, w, key)
	b.metrics[name].RecordBorrow(ctx, time.Since(start), err)
	if err != nil {
		b.logger.Debug("borrow failed",
			observability.F("pool", name),
			observability.F("key", key),
			observability.F("error", err),
		)
		return err
	}

	payload := bytes.Repeat([]byte{byte('a' + w.id%26)}, int(bufferSize(key)))
	_, _ = buf.Write(payload)
	return release()
}

func (b *bench) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("metrics server", observability.F("error", err))
		}
	})
	b.logger.Info("metrics listening", observability.F("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
		wg.Wait()
	}
}

func writeReport(w io.Writer, report Report) error {
	if err := pool.WriteJSON(w, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
