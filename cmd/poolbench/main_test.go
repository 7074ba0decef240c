package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/sizedpool/lib/observability"
)

func TestParseFlags(t *testing.T) {
	opts := parseFlags([]string{"-config", "x.yaml", "-workers", "3", "-requests", "7", "-keys", "2", "-rate", "50"})
	require.Equal(t, "x.yaml", opts.configPath)
	require.Equal(t, 3, opts.workers)
	require.Equal(t, 7, opts.requests)
	require.Equal(t, 2, opts.keys)
	require.InDelta(t, 50.0, opts.rate, 0.001)
}

func TestRunWritesReport(t *testing.T) {
	t.Setenv("POOLBENCH_ENV", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	path := filepath.Join(t.TempDir(), "poolbench.yaml")
	body := `
environment: dev
pools:
  small:
    softLimit: 2048
    hardLimit: 65536
  large:
    softLimit: 8192
    hardLimit: 65536
logging:
  level: error
telemetry:
  enableMetrics: false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	var out bytes.Buffer
	err := run(context.Background(), cliOptions{configPath: path, workers: 4, requests: 25, keys: 4}, &out)
	require.NoError(t, err)
	t.Cleanup(func() { observability.SetLogger(nil) })

	var report Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, "dev", report.Environment)
	require.Equal(t, 4, report.Workers)
	require.Equal(t, int64(100), report.Requests)
	require.Equal(t, int64(100), report.Succeeded)
	require.Len(t, report.Pools, 2)
	require.Equal(t, "large", report.Pools[0].Name)
	require.Equal(t, "small", report.Pools[1].Name)
	for _, stats := range report.Pools {
		require.Zero(t, stats.Used)
		require.LessOrEqual(t, stats.Size, stats.SoftLimit)
	}
}

func TestBufferListenerReuseResets(t *testing.T) {
	l := bufferListener(observability.Nop(), "buffers")
	w := &worker{id: 1}

	estimate, err := l.EstimateSize(w, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1024), estimate)

	buf, err := l.Create(w, 1)
	require.NoError(t, err)
	size, err := l.Size(w, 1, buf)
	require.NoError(t, err)
	require.Equal(t, estimate, size)

	buf.WriteString("payload")
	require.NoError(t, l.Reuse(w, 1, buf))
	require.Zero(t, buf.Len())
}
