package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poolbench.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error when config file missing")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	t.Setenv("POOLBENCH_ENV", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	cfg, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Environment)
	require.Equal(t, []string{"buffers"}, cfg.PoolNames())
	require.Equal(t, "poolbench", cfg.Telemetry.ServiceName)
}

func TestLoadFromYAML(t *testing.T) {
	t.Setenv("POOLBENCH_ENV", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SERVICE_NAME", "")

	path := writeConfig(t, `
environment: STAGING
pools:
  frames:
    softLimit: 64
    hardLimit: 128
    waitInitial: 2ms
    waitMax: 50ms
  " buffers ":
    softLimit: 10
    hardLimit: 20
logging:
  level: DEBUG
telemetry:
  otlpEndpoint: http://localhost:4318
  serviceName: test-service
  otlpInsecure: true
  enableMetrics: false
bench:
  workers: 4
  keys: 3
  rate: 250
`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != EnvStaging {
		t.Fatalf("expected environment %s, got %s", EnvStaging, cfg.Environment)
	}
	require.Equal(t, []string{"buffers", "frames"}, cfg.PoolNames())
	require.Equal(t, PoolConfig{SoftLimit: 64, HardLimit: 128, WaitInitial: 2 * time.Millisecond, WaitMax: 50 * time.Millisecond}, cfg.Pools["frames"])
	require.Equal(t, uint64(20), cfg.Pools["buffers"].HardLimit)
	require.Equal(t, "debug", cfg.Logging.Level)

	if cfg.Telemetry.ServiceName != "test-service" {
		t.Fatalf("expected telemetry service name test-service, got %s", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.EnableMetrics {
		t.Fatalf("expected telemetry metrics disabled")
	}
	require.True(t, cfg.Telemetry.OTLPInsecure)

	require.Equal(t, 4, cfg.Bench.Workers)
	require.Equal(t, 1000, cfg.Bench.Requests)
	require.Equal(t, 3, cfg.Bench.Keys)
	require.InDelta(t, 250.0, cfg.Bench.Rate, 0.001)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POOLBENCH_ENV", " Prod ")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "https://collector:4318")
	t.Setenv("OTEL_SERVICE_NAME", "")

	path := writeConfig(t, "environment: dev\n")
	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Environment)
	require.Equal(t, "https://collector:4318", cfg.Telemetry.OTLPEndpoint)
}

func TestLoadRejectsInvertedLimits(t *testing.T) {
	t.Setenv("POOLBENCH_ENV", "")
	path := writeConfig(t, `
pools:
  bad:
    softLimit: 30
    hardLimit: 20
`)
	_, err := Load(context.Background(), path)
	require.ErrorContains(t, err, "softLimit 30 exceeds hardLimit 20")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "default"},
		{name: "environment", mutate: func(c *AppConfig) { c.Environment = "qa" }, wantErr: "environment"},
		{name: "no pools", mutate: func(c *AppConfig) { c.Pools = nil }, wantErr: "at least one pool"},
		{name: "empty name", mutate: func(c *AppConfig) { c.Pools[""] = PoolConfig{HardLimit: 1} }, wantErr: "non-empty"},
		{name: "zero hard limit", mutate: func(c *AppConfig) { c.Pools["x"] = PoolConfig{} }, wantErr: "hardLimit must be >0"},
		{name: "log level", mutate: func(c *AppConfig) { c.Logging.Level = "verbose" }, wantErr: "logging level"},
		{name: "keys", mutate: func(c *AppConfig) { c.Bench.Keys = 0 }, wantErr: "bench keys"},
		{name: "rate", mutate: func(c *AppConfig) { c.Bench.Rate = -1 }, wantErr: "bench rate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			if tc.mutate != nil {
				tc.mutate(&cfg)
			}
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}
