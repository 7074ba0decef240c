package observability

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type entry struct {
	level  string
	msg    string
	fields []Field
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (r *recordingLogger) record(level, msg string, fields []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{level: level, msg: msg, fields: fields})
}

func (r *recordingLogger) Debug(msg string, fields ...Field) { r.record("debug", msg, fields) }
func (r *recordingLogger) Info(msg string, fields ...Field)  { r.record("info", msg, fields) }
func (r *recordingLogger) Error(msg string, fields ...Field) { r.record("error", msg, fields) }

func TestSetLoggerNilRestoresNoop(t *testing.T) {
	rec := &recordingLogger{}
	SetLogger(rec)
	t.Cleanup(func() { SetLogger(nil) })

	Log().Info("hello")
	require.Len(t, rec.entries, 1)

	SetLogger(nil)
	Log().Info("dropped")
	require.Len(t, rec.entries, 1)
}

func TestAggregateErrorsSkipsNil(t *testing.T) {
	rec := &recordingLogger{}
	require.NoError(t, AggregateErrors(rec, "shutdown", []error{nil, nil}))
	require.Empty(t, rec.entries)
}

func TestAggregateErrorsJoinsAndLogs(t *testing.T) {
	rec := &recordingLogger{}
	first := errors.New("first")
	second := errors.New("second")
	fields := make([]Field, 1, 4)
	fields[0] = F("pool", "buffers")

	err := AggregateErrors(rec, "shutdown", []error{first, nil, second}, fields...)
	require.Error(t, err)
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.Contains(t, err.Error(), "shutdown failed")

	require.Len(t, rec.entries, 1)
	got := rec.entries[0]
	require.Equal(t, "error", got.level)
	require.Equal(t, F("pool", "buffers"), got.fields[0])
	require.Equal(t, F("error_count", 2), got.fields[2])
	require.Len(t, fields, 1)
}

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	cause := errors.New("boom")
	logger.Debug("evicted", F("size", uint64(3)))
	logger.Error("listener failure", F("cause", cause), F("key", "k1"))

	all := logs.All()
	require.Len(t, all, 2)
	require.Equal(t, "evicted", all[0].Message)
	require.Equal(t, uint64(3), all[0].ContextMap()["size"])
	require.Equal(t, "boom", all[1].ContextMap()["cause"])
	require.Equal(t, "k1", all[1].ContextMap()["key"])
}

func TestNewZapLoggerNilIsNoop(t *testing.T) {
	logger := NewZapLogger(nil)
	require.NotPanics(t, func() { logger.Error("ignored") })
}

func TestNewZapProductionFallsBackToInfo(t *testing.T) {
	z, err := NewZapProduction("verbose")
	require.NoError(t, err)
	require.False(t, z.Core().Enabled(zap.DebugLevel))
	require.True(t, z.Core().Enabled(zap.InfoLevel))
}
