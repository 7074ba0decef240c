package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for pool telemetry, following OpenTelemetry naming
// conventions: namespace.attribute_name
const (
	AttrEnvironment = attribute.Key("environment")
	AttrPoolName    = attribute.Key("pool.name")
	AttrErrorType   = attribute.Key("error.type")
	AttrResult      = attribute.Key("result")
)

// Metric names.
const (
	MetricReuses         = "pool.reuses"
	MetricCreates        = "pool.creates"
	MetricEvictions      = "pool.evictions"
	MetricFailures       = "pool.failures"
	MetricSize           = "pool.size"
	MetricBorrowDuration = "pool.borrow.duration"
)

// Result values for borrow measurements.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// PoolAttributes returns common attributes for pool metrics.
func PoolAttributes(environment, poolName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPoolName.String(poolName),
	}
}
