package telemetry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/sizedpool/errs"
	"github.com/coachpo/sizedpool/lib/pool"
)

const meterName = "github.com/coachpo/sizedpool/lib/pool"

// PoolMetrics records pool engine events as OpenTelemetry instruments. It
// implements pool.Observer.
type PoolMetrics struct {
	attrs    metric.MeasurementOption
	attrList []attribute.KeyValue

	reuses    metric.Int64Counter
	creates   metric.Int64Counter
	evictions metric.Int64Counter
	failures  metric.Int64Counter
	size      metric.Int64UpDownCounter
	borrow    metric.Float64Histogram
}

var _ pool.Observer = (*PoolMetrics)(nil)

// NewPoolMetrics creates the instruments for one pool on provider.
func NewPoolMetrics(provider metric.MeterProvider, environment, poolName string) (*PoolMetrics, error) {
	meter := provider.Meter(meterName)
	attrList := PoolAttributes(environment, poolName)
	m := &PoolMetrics{
		attrs:    metric.WithAttributes(attrList...),
		attrList: attrList,
	}

	var err error
	if m.reuses, err = meter.Int64Counter(MetricReuses,
		metric.WithDescription("Values handed out again from the free set"),
		metric.WithUnit("{value}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricReuses, err)
	}
	if m.creates, err = meter.Int64Counter(MetricCreates,
		metric.WithDescription("Values created by the listener"),
		metric.WithUnit("{value}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricCreates, err)
	}
	if m.evictions, err = meter.Int64Counter(MetricEvictions,
		metric.WithDescription("Free values evicted and deleted"),
		metric.WithUnit("{value}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricEvictions, err)
	}
	if m.failures, err = meter.Int64Counter(MetricFailures,
		metric.WithDescription("Failed get operations by error type"),
		metric.WithUnit("{error}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricFailures, err)
	}
	if m.size, err = meter.Int64UpDownCounter(MetricSize,
		metric.WithDescription("Accounted pool size"),
		metric.WithUnit("{unit}")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricSize, err)
	}
	if m.borrow, err = meter.Float64Histogram(MetricBorrowDuration,
		metric.WithDescription("Pool borrow operation duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricBorrowDuration, err)
	}
	return m, nil
}

// Reused records a value served from the free set.
func (m *PoolMetrics) Reused() {
	m.reuses.Add(context.Background(), 1, m.attrs)
}

// Created records a new value and its size.
func (m *PoolMetrics) Created(size uint64) {
	ctx := context.Background()
	m.creates.Add(ctx, 1, m.attrs)
	m.size.Add(ctx, clampInt64(size), m.attrs)
}

// Evicted records a deleted value and releases its size.
func (m *PoolMetrics) Evicted(size uint64) {
	ctx := context.Background()
	m.evictions.Add(ctx, 1, m.attrs)
	m.size.Add(ctx, -clampInt64(size), m.attrs)
}

// Failed records a failed get by error code.
func (m *PoolMetrics) Failed(code errs.Code) {
	attrs := append(append([]attribute.KeyValue(nil), m.attrList...), AttrErrorType.String(string(code)))
	m.failures.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordBorrow records how long a caller waited for a value.
func (m *PoolMetrics) RecordBorrow(ctx context.Context, elapsed time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	attrs := append(append([]attribute.KeyValue(nil), m.attrList...), AttrResult.String(result))
	m.borrow.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
